package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := testEpoch
	return s.WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
}

func createTestUser(t *testing.T, s *store.Store, email string) *store.User {
	t.Helper()
	u := &store.User{Email: email, DisplayName: email, IsActive: true}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func ptr[T any](v T) *T { return &v }
