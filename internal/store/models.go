package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash *string   `db:"password_hash" json:"-"` // nil for OAuth-only accounts
	DisplayName  string    `db:"display_name" json:"displayName"`
	AvatarURL    *string   `db:"avatar_url" json:"avatarUrl"`
	GoogleID     *string   `db:"google_id" json:"googleId"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Token     string    `db:"token" json:"token"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Conversation struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Source is a citation embedded on a message row.
type Source struct {
	Title     string   `json:"title" validate:"required"`
	URL       string   `json:"url" validate:"required"`
	Snippet   string   `json:"snippet"`
	Relevance *float64 `json:"relevance,omitempty" validate:"omitempty,min=0,max=1"`
}

// Sources round-trips through a nullable TEXT column as JSON. A nil slice is
// stored as NULL, an empty slice as "[]".
type Sources []Source

func (s Sources) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal([]Source(s))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sources: %w", err)
	}
	return string(b), nil
}

func (s *Sources) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported sources column type %T", src)
	}

	out := Sources{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	*s = out
	return nil
}

type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	Content        string    `db:"content" json:"content"`
	Role           string    `db:"role" json:"role"`
	Sources        Sources   `db:"sources" json:"sources"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// ResearchSource is the normalized form of a citation.
type ResearchSource struct {
	ID             string    `db:"id" json:"id"`
	MessageID      string    `db:"message_id" json:"messageId"`
	Title          string    `db:"title" json:"title"`
	URL            string    `db:"url" json:"url"`
	Snippet        string    `db:"snippet" json:"snippet"`
	RelevanceScore float64   `db:"relevance_score" json:"relevanceScore"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// ResearchDocument is an ingested corpus chunk used for retrieval.
type ResearchDocument struct {
	ID            int64     `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	URL           string    `db:"url" json:"url"`
	Content       string    `db:"content" json:"content"`
	EmbeddingJSON string    `db:"embedding_json" json:"-"`
	Embedding     []float32 `db:"-" json:"-"`
}
