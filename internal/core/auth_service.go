package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/appdotbuilder/byteser-ai-chat/internal/auth"
	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

const DefaultSessionTTL = 24 * time.Hour

type UserStore interface {
	CreateUser(ctx context.Context, u *store.User) error
	UpdateUser(ctx context.Context, u *store.User) (bool, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*store.User, error)
	CreateSession(ctx context.Context, userID, token string, expiresAt time.Time) (*store.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*store.Session, error)
	DeleteSessionByToken(ctx context.Context, token string) (bool, error)
}

// IDTokenVerifier validates a Google ID token and returns the identity it carries.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*auth.GoogleIdentity, error)
}

type AuthService struct {
	users      UserStore
	sessionTTL time.Duration
	now        func() time.Time
	verifier   IDTokenVerifier
}

type AuthOption func(*AuthService)

// WithClock overrides the clock used for session expiry.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithIDTokenVerifier makes GoogleAuth require a valid ID token matching the
// claimed Google id and email.
func WithIDTokenVerifier(v IDTokenVerifier) AuthOption {
	return func(s *AuthService) { s.verifier = v }
}

func NewAuthService(users UserStore, sessionTTL time.Duration, opts ...AuthOption) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	s := &AuthService{
		users:      users,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateUserInput struct {
	Email       string
	Password    *string
	DisplayName string
	AvatarURL   *string
	GoogleID    *string
}

func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*store.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, newError(CodeConflict, "user with this email already exists")
	}
	if in.GoogleID != nil {
		linked, err := s.users.GetUserByGoogleID(ctx, *in.GoogleID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing google account: %w", err)
		}
		if linked != nil {
			return nil, newError(CodeConflict, "google account is already linked to another user")
		}
	}

	user := &store.User{
		Email:       in.Email,
		DisplayName: in.DisplayName,
		AvatarURL:   in.AvatarURL,
		GoogleID:    in.GoogleID,
		IsActive:    true,
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(CodeConflict, "user with this email already exists")
		}
		return nil, err
	}
	return user, nil
}

// Login checks a password and issues a new session. Existing sessions of the
// user stay valid.
func (s *AuthService) Login(ctx context.Context, email, password string) (*store.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	// Deactivation is reported before the password is checked.
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	if user.PasswordHash == nil {
		return nil, ErrWrongAuthMethod
	}
	if !auth.CheckPasswordHash(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, user.ID)
}

type GoogleAuthInput struct {
	GoogleID    string
	Email       string
	DisplayName string
	AvatarURL   *string
	IDToken     string
}

// GoogleAuth signs in with a Google identity: an account already linked to
// the Google id wins, then an account with the same email gets linked, and
// otherwise a new OAuth-only user is created. A session is always issued.
func (s *AuthService) GoogleAuth(ctx context.Context, in GoogleAuthInput) (*store.Session, error) {
	if err := s.verifyGoogleIdentity(ctx, in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByGoogleID(ctx, in.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up google account: %w", err)
	}
	if user == nil {
		user, err = s.users.GetUserByEmail(ctx, in.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
	}

	if user == nil {
		googleID := in.GoogleID
		user = &store.User{
			Email:       in.Email,
			DisplayName: in.DisplayName,
			AvatarURL:   in.AvatarURL,
			GoogleID:    &googleID,
			IsActive:    true,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return nil, newError(CodeConflict, "user with this email already exists")
			}
			return nil, err
		}
		slog.Info("created user from google sign-in", "user_id", user.ID)
		return s.issueSession(ctx, user.ID)
	}

	googleID := in.GoogleID
	user.GoogleID = &googleID
	user.DisplayName = in.DisplayName
	user.AvatarURL = in.AvatarURL
	if _, err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(CodeConflict, "google account is already linked to another user")
		}
		return nil, err
	}
	return s.issueSession(ctx, user.ID)
}

func (s *AuthService) verifyGoogleIdentity(ctx context.Context, in GoogleAuthInput) error {
	if s.verifier == nil {
		return nil
	}
	id, err := s.verifier.Verify(ctx, in.IDToken)
	if err != nil {
		return &Error{Code: CodeUnauthorized, Message: "google id token rejected", Err: err}
	}
	if id.GoogleID != in.GoogleID || !strings.EqualFold(id.Email, in.Email) {
		return newError(CodeUnauthorized, "google id token does not match the supplied identity")
	}
	return nil
}

// ValidateSession returns the session's user, or nil when the token is
// unknown, expired or belongs to a deactivated user.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*store.User, error) {
	sess, err := s.users.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, nil
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}
	return user, nil
}

// Logout reports whether a session was actually removed.
func (s *AuthService) Logout(ctx context.Context, token string) (bool, error) {
	return s.users.DeleteSessionByToken(ctx, token)
}

func (s *AuthService) GetUserProfile(ctx context.Context, userID string) (*store.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateUserProfile changes the fields that are non-nil.
func (s *AuthService) UpdateUserProfile(ctx context.Context, userID string, displayName, avatarURL *string) (*store.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, notFound("user %s not found", userID)
	}
	if displayName != nil {
		user.DisplayName = *displayName
	}
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
	ok, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("user %s not found", userID)
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID string) (*store.Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return nil, err
	}
	return s.users.CreateSession(ctx, userID, token, s.now().Add(s.sessionTTL))
}
