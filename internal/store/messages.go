package store

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
)

const messageColumns = `id, conversation_id, content, role, sources, created_at`

// CreateMessage inserts msg, assigning its ID and timestamp. msg.Sources is
// stored as given: nil becomes NULL and an empty slice stays empty.
func (s *Store) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()

	_, err := s.exec(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Content, msg.Role, msg.Sources, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns every message of a conversation, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	msgs := []Message{}
	err := s.selectAll(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return msgs, nil
}

// ListRecentMessages returns up to n of the newest messages, oldest first.
func (s *Store) ListRecentMessages(ctx context.Context, conversationID string, n int) ([]Message, error) {
	msgs := []Message{}
	err := s.selectAll(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?`, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CreateResearchSources writes the normalized rows for the citations of one
// message. Missing relevance scores are stored as 0.
func (s *Store) CreateResearchSources(ctx context.Context, messageID string, sources []Source) ([]ResearchSource, error) {
	created := make([]ResearchSource, 0, len(sources))
	now := s.now()
	for _, src := range sources {
		rs := ResearchSource{
			ID:        uuid.NewString(),
			MessageID: messageID,
			Title:     src.Title,
			URL:       src.URL,
			Snippet:   src.Snippet,
			CreatedAt: now,
		}
		if src.Relevance != nil {
			rs.RelevanceScore = clampUnit(*src.Relevance)
		}
		_, err := s.exec(ctx,
			`INSERT INTO research_sources (id, message_id, title, url, snippet, relevance_score, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rs.ID, rs.MessageID, rs.Title, rs.URL, rs.Snippet, rs.RelevanceScore, rs.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert research source: %w", err)
		}
		created = append(created, rs)
	}
	return created, nil
}

func (s *Store) ListResearchSources(ctx context.Context, messageID string) ([]ResearchSource, error) {
	sources := []ResearchSource{}
	err := s.selectAll(ctx, &sources,
		`SELECT id, message_id, title, url, snippet, relevance_score, created_at
         FROM research_sources WHERE message_id = ? ORDER BY relevance_score DESC, created_at ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query research sources: %w", err)
	}
	return sources, nil
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
