package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

func TestCreateConversationRequiresActiveUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewConversationService(s)

	_, err := svc.Create(ctx, "no-such-user", "Hello")
	assert.ErrorIs(t, err, ErrNotFound)

	u := createTestUser(t, s, "off@example.com")
	u.IsActive = false
	_, err = s.UpdateUser(ctx, u)
	require.NoError(t, err)

	_, err = svc.Create(ctx, u.ID, "Hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewConversationService(s)

	alice := createTestUser(t, s, "alice@example.com")
	bob := createTestUser(t, s, "bob@example.com")

	conv, err := svc.Create(ctx, alice.ID, "Alice's notes")
	require.NoError(t, err)

	bobsList, err := svc.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.NotNil(t, bobsList)
	assert.Empty(t, bobsList)

	_, err = svc.Update(ctx, conv.ID, bob.ID, ptr("Hijacked"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, "missing", alice.ID, ptr("Nope"))
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := svc.Delete(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice's notes", got.Title)

	updated, err := svc.Update(ctx, conv.ID, alice.ID, ptr("Renamed"))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt))

	deleted, err = svc.Delete(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListConversationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewConversationService(s)
	u := createTestUser(t, s, "list@example.com")

	first, err := svc.Create(ctx, u.ID, "First")
	require.NoError(t, err)
	second, err := svc.Create(ctx, u.ID, "Second")
	require.NoError(t, err)

	convs, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)

	// Touching the older conversation moves it to the top.
	_, err = svc.Update(ctx, first.ID, u.ID, nil)
	require.NoError(t, err)
	convs, err = svc.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, convs[0].ID)
}

func TestSearchConversationsService(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	convs := NewConversationService(s)
	msgs := NewMessageService(s)

	alice := createTestUser(t, s, "alice@example.com")
	bob := createTestUser(t, s, "bob@example.com")

	climate, err := convs.Create(ctx, alice.ID, "Climate research")
	require.NoError(t, err)
	_, err = msgs.Create(ctx, climate.ID, "What drives climate change?", store.RoleUser, nil)
	require.NoError(t, err)

	cooking, err := convs.Create(ctx, alice.ID, "Dinner ideas")
	require.NoError(t, err)
	_, err = msgs.Create(ctx, cooking.ID, "Recipes that mention the CLIMATE of Provence", store.RoleUser, nil)
	require.NoError(t, err)

	_, err = convs.Create(ctx, bob.ID, "Climate for Bob")
	require.NoError(t, err)

	found, err := convs.Search(ctx, alice.ID, "climate")
	require.NoError(t, err)
	require.Len(t, found, 2, "title and content matches are returned once each")
	ids := []string{found[0].ID, found[1].ID}
	assert.ElementsMatch(t, []string{climate.ID, cooking.ID}, ids)

	found, err = convs.Search(ctx, alice.ID, "   ")
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)

	found, err = convs.Search(ctx, bob.ID, "dinner")
	require.NoError(t, err)
	assert.Empty(t, found)
}
