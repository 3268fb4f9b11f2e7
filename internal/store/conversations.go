package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const conversationColumns = `id, user_id, title, created_at, updated_at`

func (s *Store) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := s.now()
	c := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.exec(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	found, err := nullIfNoRows(&c, s.get(ctx, &c,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return found, nil
}

// GetOwnedConversation returns the conversation only if userID owns it. A
// missing conversation and one owned by somebody else both yield nil.
func (s *Store) GetOwnedConversation(ctx context.Context, id, userID string) (*Conversation, error) {
	var c Conversation
	found, err := nullIfNoRows(&c, s.get(ctx, &c,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return found, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	convs := []Conversation{}
	err := s.selectAll(ctx, &convs,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	return convs, nil
}

// UpdateConversation sets the title when given and always bumps updated_at.
// It returns nil when the conversation does not exist or is not owned by userID.
func (s *Store) UpdateConversation(ctx context.Context, id, userID string, title *string) (*Conversation, error) {
	updatedAt := s.now()

	var res sql.Result
	var err error
	if title != nil {
		res, err = s.exec(ctx,
			`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			*title, updatedAt, id, userID)
	} else {
		res, err = s.exec(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ? AND user_id = ?`,
			updatedAt, id, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetOwnedConversation(ctx, id, userID)
}

// DeleteConversation removes the conversation, its messages and their sources.
// It reports whether anything was deleted.
func (s *Store) DeleteConversation(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// SearchConversations matches query case-insensitively against conversation
// titles and message contents of userID's conversations. Each conversation
// appears at most once, most recently updated first.
func (s *Store) SearchConversations(ctx context.Context, userID, query string) ([]Conversation, error) {
	convs := []Conversation{}
	query = strings.TrimSpace(query)
	if query == "" {
		return convs, nil
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	err := s.selectAll(ctx, &convs, `
        SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at
        FROM conversations c
        WHERE c.user_id = ?
          AND (
            LOWER(c.title) LIKE ? ESCAPE '\'
            OR EXISTS (
                SELECT 1 FROM messages m
                WHERE m.conversation_id = c.id AND LOWER(m.content) LIKE ? ESCAPE '\'
            )
          )
        ORDER BY c.updated_at DESC
    `, userID, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}
	return convs, nil
}
