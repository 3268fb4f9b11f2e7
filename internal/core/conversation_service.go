package core

import (
	"context"
	"fmt"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

type ConversationStore interface {
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	CreateConversation(ctx context.Context, userID, title string) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]store.Conversation, error)
	UpdateConversation(ctx context.Context, id, userID string, title *string) (*store.Conversation, error)
	DeleteConversation(ctx context.Context, id, userID string) (bool, error)
	SearchConversations(ctx context.Context, userID, query string) ([]store.Conversation, error)
}

type ConversationService struct {
	store ConversationStore
}

func NewConversationService(s ConversationStore) *ConversationService {
	return &ConversationService{store: s}
}

func (s *ConversationService) Create(ctx context.Context, userID, title string) (*store.Conversation, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, notFound("user not found or inactive")
	}
	return s.store.CreateConversation(ctx, userID, title)
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]store.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// Update fails with NOT_FOUND both for a missing conversation and for one
// owned by another user.
func (s *ConversationService) Update(ctx context.Context, id, userID string, title *string) (*store.Conversation, error) {
	conv, err := s.store.UpdateConversation(ctx, id, userID, title)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, notFound("conversation not found or access denied")
	}
	return conv, nil
}

// Delete reports false when there was nothing of the user's to delete.
func (s *ConversationService) Delete(ctx context.Context, id, userID string) (bool, error) {
	return s.store.DeleteConversation(ctx, id, userID)
}

func (s *ConversationService) Search(ctx context.Context, userID, query string) ([]store.Conversation, error) {
	return s.store.SearchConversations(ctx, userID, query)
}
