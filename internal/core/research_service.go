package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

const (
	historyWindow  = 10
	maxTitleLength = 50
	defaultTitle   = "New conversation"
)

type ResearchStore interface {
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetOwnedConversation(ctx context.Context, id, userID string) (*store.Conversation, error)
	ListRecentMessages(ctx context.Context, conversationID string, n int) ([]store.Message, error)
	WithTx(ctx context.Context, fn func(tx *store.Store) error) error
}

// ResearchService runs one AI chat turn: it stores the user's message and the
// assistant reply, optionally backed by research sources.
type ResearchService struct {
	store     ResearchStore
	research  ResearchProvider
	responder ResponseGenerator
	titler    TitleGenerator
}

// NewResearchService wires the orchestration. titler may be nil, in which
// case implicit conversations are titled from the first message.
func NewResearchService(s ResearchStore, research ResearchProvider, responder ResponseGenerator, titler TitleGenerator) *ResearchService {
	return &ResearchService{
		store:     s,
		research:  research,
		responder: responder,
		titler:    titler,
	}
}

type ChatInput struct {
	ConversationID string
	// UserID scopes the conversation lookup to its owner. With an empty
	// ConversationID a new conversation is started for this user.
	UserID         string
	Message        string
	EnableResearch bool
}

// Chat produces sources and the reply before writing anything, then stores
// the user message and assistant message in one transaction. A failure in
// research or generation leaves the conversation untouched.
func (s *ResearchService) Chat(ctx context.Context, in ChatInput) (*store.Message, error) {
	conv, err := s.resolveConversation(ctx, in)
	if err != nil {
		return nil, err
	}

	// History is read before the new turn is written.
	history := []store.Message{}
	if conv != nil {
		history, err = s.store.ListRecentMessages(ctx, conv.ID, historyWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to load chat history: %w", err)
		}
	}

	var sources []store.Source
	if in.EnableResearch {
		sources, err = s.research.FetchSources(ctx, in.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch research sources: %w", err)
		}
		if sources == nil {
			sources = []store.Source{}
		}
	}

	reply, err := s.responder.Generate(ctx, GenerationRequest{
		History: history,
		Message: in.Message,
		Sources: sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	var newTitle string
	if conv == nil {
		newTitle = s.titleFor(ctx, in.Message)
	}

	assistant := &store.Message{Content: reply, Role: store.RoleAssistant}
	if sources != nil {
		assistant.Sources = store.Sources(sources)
	}

	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		conversationID := ""
		if conv != nil {
			conversationID = conv.ID
		} else {
			created, err := tx.CreateConversation(ctx, in.UserID, newTitle)
			if err != nil {
				return err
			}
			conversationID = created.ID
		}

		userMsg := &store.Message{ConversationID: conversationID, Content: in.Message, Role: store.RoleUser}
		if err := tx.CreateMessage(ctx, userMsg); err != nil {
			return err
		}
		assistant.ConversationID = conversationID
		return writeMessage(ctx, tx, assistant)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chat turn: %w", err)
	}
	return assistant, nil
}

// resolveConversation returns nil (and no error) when a new conversation has
// to be started for in.UserID.
func (s *ResearchService) resolveConversation(ctx context.Context, in ChatInput) (*store.Conversation, error) {
	switch {
	case in.ConversationID != "" && in.UserID != "":
		conv, err := s.store.GetOwnedConversation(ctx, in.ConversationID, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}
		if conv == nil {
			return nil, notFound("conversation not found or access denied")
		}
		return conv, nil

	case in.ConversationID != "":
		conv, err := s.store.GetConversation(ctx, in.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}
		if conv == nil {
			return nil, notFound("conversation %s not found", in.ConversationID)
		}
		return conv, nil

	case in.UserID != "":
		user, err := s.store.GetUserByID(ctx, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil || !user.IsActive {
			return nil, notFound("user not found or inactive")
		}
		return nil, nil

	default:
		return nil, newError(CodeInvalidInput, "conversationId or userId is required")
	}
}

func (s *ResearchService) titleFor(ctx context.Context, firstMessage string) string {
	fallback := truncateRunes(strings.Join(strings.Fields(firstMessage), " "), maxTitleLength)
	if fallback == "" {
		fallback = defaultTitle
	}
	if s.titler == nil {
		return fallback
	}

	title, err := s.titler.GenerateTitle(ctx, firstMessage)
	if err != nil {
		slog.Warn("failed to generate conversation title, using message prefix", "error", err)
		return fallback
	}
	title = strings.Trim(title, "\"'\n\r\t .")
	if title == "" {
		return fallback
	}
	return truncateRunes(title, 255)
}
