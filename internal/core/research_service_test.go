package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

type fakeResearch struct {
	sources []store.Source
	err     error
	queries []string
}

func (f *fakeResearch) FetchSources(_ context.Context, query string) ([]store.Source, error) {
	f.queries = append(f.queries, query)
	return f.sources, f.err
}

type fakeResponder struct {
	reply    string
	err      error
	requests []GenerationRequest
}

func (f *fakeResponder) Generate(_ context.Context, req GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type fakeTitler struct {
	title string
	err   error
}

func (f fakeTitler) GenerateTitle(context.Context, string) (string, error) {
	return f.title, f.err
}

func setupChat(t *testing.T) (*store.Store, *store.User, *store.Conversation) {
	t.Helper()
	s := newTestStore(t)
	u := createTestUser(t, s, "chat@example.com")
	conv, err := s.CreateConversation(context.Background(), u.ID, "Research")
	require.NoError(t, err)
	return s, u, conv
}

func TestChatWithResearch(t *testing.T) {
	ctx := context.Background()
	s, u, conv := setupChat(t)

	research := &fakeResearch{sources: []store.Source{
		{Title: "A", URL: "https://a.example", Snippet: "a", Relevance: ptr(0.9)},
		{Title: "B", URL: "https://b.example", Snippet: "b", Relevance: ptr(0.8)},
	}}
	responder := &fakeResponder{reply: "Here is what I found [1][2]."}
	svc := NewResearchService(s, research, responder, nil)

	reply, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, UserID: u.ID, Message: "quantum computing", EnableResearch: true})
	require.NoError(t, err)
	assert.Equal(t, store.RoleAssistant, reply.Role)
	assert.Equal(t, "Here is what I found [1][2].", reply.Content)
	require.Len(t, reply.Sources, 2)
	assert.Equal(t, []string{"quantum computing"}, research.queries)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "quantum computing", msgs[0].Content)
	assert.Equal(t, reply.ID, msgs[1].ID)
	require.Len(t, msgs[1].Sources, 2)

	normalized, err := s.ListResearchSources(ctx, reply.ID)
	require.NoError(t, err)
	assert.Len(t, normalized, 2)
}

func TestChatWithoutResearch(t *testing.T) {
	ctx := context.Background()
	s, _, conv := setupChat(t)

	research := &fakeResearch{}
	responder := &fakeResponder{reply: "General answer."}
	svc := NewResearchService(s, research, responder, nil)

	reply, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, Message: "hello", EnableResearch: false})
	require.NoError(t, err)
	assert.Nil(t, reply.Sources)
	assert.Empty(t, research.queries, "research is skipped entirely")
	require.Len(t, responder.requests, 1)
	assert.Nil(t, responder.requests[0].Sources)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[1].Sources)
}

func TestChatResearchWithoutResults(t *testing.T) {
	ctx := context.Background()
	s, _, conv := setupChat(t)

	svc := NewResearchService(s, &fakeResearch{}, &fakeResponder{reply: "Nothing found."}, nil)

	reply, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, Message: "obscure", EnableResearch: true})
	require.NoError(t, err)
	assert.NotNil(t, reply.Sources)
	assert.Empty(t, reply.Sources)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[1].Sources)
	assert.Empty(t, msgs[1].Sources)
}

func TestChatFailuresWriteNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("research failure", func(t *testing.T) {
		s, _, conv := setupChat(t)
		svc := NewResearchService(s, &fakeResearch{err: errors.New("backend down")}, &fakeResponder{reply: "unused"}, nil)

		_, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, Message: "q", EnableResearch: true})
		require.Error(t, err)

		msgs, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("generation failure", func(t *testing.T) {
		s, _, conv := setupChat(t)
		svc := NewResearchService(s, &fakeResearch{}, &fakeResponder{err: errors.New("model overloaded")}, nil)

		_, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, Message: "q", EnableResearch: true})
		require.Error(t, err)

		msgs, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestChatConversationLookup(t *testing.T) {
	ctx := context.Background()
	s, _, conv := setupChat(t)
	other := createTestUser(t, s, "other@example.com")
	svc := NewResearchService(s, &fakeResearch{}, &fakeResponder{reply: "ok"}, nil)

	_, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, UserID: other.ID, Message: "q"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Chat(ctx, ChatInput{ConversationID: "missing", Message: "q"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Chat(ctx, ChatInput{Message: "q"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatStartsConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("generated title", func(t *testing.T) {
		s, u, _ := setupChat(t)
		svc := NewResearchService(s, &fakeResearch{}, &fakeResponder{reply: "ok"}, fakeTitler{title: `"Ocean Currents"`})

		reply, err := svc.Chat(ctx, ChatInput{UserID: u.ID, Message: "How do ocean currents work?"})
		require.NoError(t, err)

		conv, err := s.GetOwnedConversation(ctx, reply.ConversationID, u.ID)
		require.NoError(t, err)
		require.NotNil(t, conv)
		assert.Equal(t, "Ocean Currents", conv.Title)

		msgs, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("fallback title", func(t *testing.T) {
		s, u, _ := setupChat(t)
		svc := NewResearchService(s, &fakeResearch{}, &fakeResponder{reply: "ok"}, fakeTitler{err: errors.New("quota")})

		long := strings.Repeat("word ", 30)
		reply, err := svc.Chat(ctx, ChatInput{UserID: u.ID, Message: long})
		require.NoError(t, err)

		conv, err := s.GetConversation(ctx, reply.ConversationID)
		require.NoError(t, err)
		require.NotNil(t, conv)
		assert.LessOrEqual(t, len([]rune(conv.Title)), maxTitleLength)
		assert.True(t, strings.HasPrefix(conv.Title, "word word"))
	})

	t.Run("inactive user", func(t *testing.T) {
		s, u, _ := setupChat(t)
		u.IsActive = false
		_, err := s.UpdateUser(ctx, u)
		require.NoError(t, err)

		svc := NewResearchService(s, &fakeResearch{}, &fakeResponder{reply: "ok"}, nil)
		_, err = svc.Chat(ctx, ChatInput{UserID: u.ID, Message: "hi"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChatPassesHistory(t *testing.T) {
	ctx := context.Background()
	s, _, conv := setupChat(t)
	responder := &fakeResponder{reply: "answer"}
	svc := NewResearchService(s, &fakeResearch{}, responder, nil)

	_, err := svc.Chat(ctx, ChatInput{ConversationID: conv.ID, Message: "first"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, ChatInput{ConversationID: conv.ID, Message: "second"})
	require.NoError(t, err)

	require.Len(t, responder.requests, 2)
	assert.Empty(t, responder.requests[0].History)
	history := responder.requests[1].History
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, store.RoleAssistant, history[1].Role)
	assert.Equal(t, "second", responder.requests[1].Message)
}

func TestTemplateResponder(t *testing.T) {
	ctx := context.Background()
	r := TemplateResponder{}

	disabled, err := r.Generate(ctx, GenerationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Contains(t, disabled, "enable research")

	none, err := r.Generate(ctx, GenerationRequest{Message: "hi", Sources: []store.Source{}})
	require.NoError(t, err)
	assert.Contains(t, none, "could not find any relevant sources")

	cited, err := r.Generate(ctx, GenerationRequest{Message: "hi", Sources: []store.Source{{Title: "T", URL: "u", Snippet: "S"}}})
	require.NoError(t, err)
	assert.Contains(t, cited, "[1] T: S")
}

func TestStaticResearchProvider(t *testing.T) {
	sources, err := StaticResearchProvider{}.FetchSources(context.Background(), "solar power")
	require.NoError(t, err)
	require.Len(t, sources, 3)
	for i, src := range sources {
		assert.NotEmpty(t, src.Title)
		assert.Contains(t, src.URL, "solar+power")
		require.NotNil(t, src.Relevance)
		if i > 0 {
			assert.Less(t, *src.Relevance, *sources[i-1].Relevance)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "ab...", truncateRunes("abcdefgh", 5))
	assert.Equal(t, "héé", truncateRunes("héébc", 3))
}
