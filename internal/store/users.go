package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, display_name, avatar_url, google_id, is_active, created_at, updated_at`

// CreateUser inserts u, assigning its ID and timestamps. Violating the
// unique email or Google id returns an error wrapping ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	u.ID = uuid.NewString()
	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.GoogleID, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateUser persists the mutable fields of u and refreshes its updated_at.
// It returns false when no user with u.ID exists.
func (s *Store) UpdateUser(ctx context.Context, u *User) (bool, error) {
	updatedAt := s.now()
	res, err := s.exec(ctx,
		`UPDATE users SET password_hash = ?, display_name = ?, avatar_url = ?, google_id = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		u.PasswordHash, u.DisplayName, u.AvatarURL, u.GoogleID, u.IsActive, updatedAt, u.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	u.UpdatedAt = updatedAt
	return true, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	found, err := nullIfNoRows(&u, s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return found, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	found, err := nullIfNoRows(&u, s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return found, nil
}

func (s *Store) GetUserByGoogleID(ctx context.Context, googleID string) (*User, error) {
	var u User
	found, err := nullIfNoRows(&u, s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID))
	if err != nil {
		return nil, fmt.Errorf("failed to query user by google id: %w", err)
	}
	return found, nil
}
