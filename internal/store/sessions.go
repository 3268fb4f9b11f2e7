package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession stores a new session for userID with the given token.
func (s *Store) CreateSession(ctx context.Context, userID, token string, expiresAt time.Time) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: s.now(),
	}
	_, err := s.exec(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Token, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	var sess Session
	found, err := nullIfNoRows(&sess, s.get(ctx, &sess,
		`SELECT id, user_id, token, expires_at, created_at FROM sessions WHERE token = ?`, token))
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return found, nil
}

// DeleteSessionByToken reports whether a session row was removed.
func (s *Store) DeleteSessionByToken(ctx context.Context, token string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}
