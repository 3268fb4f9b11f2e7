package core

import (
	"context"
	"fmt"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

type MessageStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	ListResearchSources(ctx context.Context, messageID string) ([]store.ResearchSource, error)
	WithTx(ctx context.Context, fn func(tx *store.Store) error) error
}

type MessageService struct {
	store MessageStore
}

func NewMessageService(s MessageStore) *MessageService {
	return &MessageService{store: s}
}

// Create appends a message to an existing conversation. A nil sources slice
// is stored as null and an empty one is kept empty.
func (s *MessageService) Create(ctx context.Context, conversationID, content, role string, sources []store.Source) (*store.Message, error) {
	if role != store.RoleUser && role != store.RoleAssistant {
		return nil, newError(CodeInvalidInput, fmt.Sprintf("unknown role %q", role))
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}
	if conv == nil {
		return nil, notFound("conversation %s not found", conversationID)
	}

	msg := &store.Message{
		ConversationID: conversationID,
		Content:        content,
		Role:           role,
	}
	if sources != nil {
		msg.Sources = store.Sources(sources)
	}
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		return writeMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, conversationID string) ([]store.Message, error) {
	return s.store.ListMessages(ctx, conversationID)
}

func (s *MessageService) Sources(ctx context.Context, messageID string) ([]store.ResearchSource, error) {
	return s.store.ListResearchSources(ctx, messageID)
}

type messageWriter interface {
	CreateMessage(ctx context.Context, msg *store.Message) error
	CreateResearchSources(ctx context.Context, messageID string, sources []store.Source) ([]store.ResearchSource, error)
}

// writeMessage stores the message row and the normalized copy of its sources.
func writeMessage(ctx context.Context, w messageWriter, msg *store.Message) error {
	if err := w.CreateMessage(ctx, msg); err != nil {
		return err
	}
	if len(msg.Sources) == 0 {
		return nil
	}
	_, err := w.CreateResearchSources(ctx, msg.ID, msg.Sources)
	return err
}
