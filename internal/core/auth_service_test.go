package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdotbuilder/byteser-ai-chat/internal/auth"
	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

type fakeVerifier struct {
	identity *auth.GoogleIdentity
	err      error
	calls    int
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*auth.GoogleIdentity, error) {
	f.calls++
	return f.identity, f.err
}

func newTestAuth(t *testing.T, opts ...AuthOption) (*AuthService, *store.Store, *time.Time) {
	t.Helper()
	s := newTestStore(t)
	now := testEpoch
	opts = append([]AuthOption{WithClock(func() time.Time { return now })}, opts...)
	return NewAuthService(s, time.Hour, opts...), s, &now
}

func TestCreateUserAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuth(t)

	user, err := svc.CreateUser(ctx, CreateUserInput{
		Email:       "ana@example.com",
		Password:    ptr("s3cret-pass"),
		DisplayName: "Ana",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "s3cret-pass", *user.PasswordHash)

	sess, err := svc.Login(ctx, "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.Len(t, sess.Token, 64)
	assert.Equal(t, testEpoch.Add(time.Hour), sess.ExpiresAt)

	again, err := svc.Login(ctx, "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, again.Token)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuth(t)

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "dup@example.com", Password: ptr("pw"), DisplayName: "One"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "dup@example.com", Password: ptr("pw"), DisplayName: "Two"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateUserDuplicateGoogleID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuth(t)

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "a@example.com", DisplayName: "A", GoogleID: ptr("g-1")})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "b@example.com", DisplayName: "B", GoogleID: ptr("g-1")})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newTestAuth(t)

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "pw@example.com", Password: ptr("right"), DisplayName: "PW"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "oauth@example.com", DisplayName: "OAuth", GoogleID: ptr("g-2")})
	require.NoError(t, err)
	off, err := svc.CreateUser(ctx, CreateUserInput{Email: "off@example.com", Password: ptr("right"), DisplayName: "Off"})
	require.NoError(t, err)
	off.IsActive = false
	_, err = s.UpdateUser(ctx, off)
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@example.com", "right", ErrInvalidCredentials},
		{"wrong password", "pw@example.com", "wrong", ErrInvalidCredentials},
		{"oauth only account", "oauth@example.com", "anything", ErrWrongAuthMethod},
		{"deactivated account", "off@example.com", "right", ErrAccountDeactivated},
		{"deactivated account wrong password", "off@example.com", "wrong", ErrAccountDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Login(ctx, tt.email, tt.password)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateSessionExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _, now := newTestAuth(t)

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "s@example.com", Password: ptr("pw"), DisplayName: "S"})
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "s@example.com", "pw")
	require.NoError(t, err)

	got, err := svc.ValidateSession(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	*now = sess.ExpiresAt.Add(-time.Nanosecond)
	got, err = svc.ValidateSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.NotNil(t, got)

	*now = sess.ExpiresAt
	got, err = svc.ValidateSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got, "a session expiring exactly now is invalid")

	got, err = svc.ValidateSession(ctx, "unknown-token")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateSessionInactiveUser(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newTestAuth(t)

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "i@example.com", Password: ptr("pw"), DisplayName: "I"})
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "i@example.com", "pw")
	require.NoError(t, err)

	user.IsActive = false
	_, err = s.UpdateUser(ctx, user)
	require.NoError(t, err)

	got, err := svc.ValidateSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuth(t)

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "l@example.com", Password: ptr("pw"), DisplayName: "L"})
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "l@example.com", "pw")
	require.NoError(t, err)

	removed, err := svc.Logout(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Logout(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, removed)

	got, err := svc.ValidateSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGoogleAuthCreatesUser(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newTestAuth(t)

	sess, err := svc.GoogleAuth(ctx, GoogleAuthInput{
		GoogleID:    "g-new",
		Email:       "new@example.com",
		DisplayName: "New User",
		AvatarURL:   ptr("https://img.example.com/new.png"),
	})
	require.NoError(t, err)

	user, err := s.GetUserByID(ctx, sess.UserID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Nil(t, user.PasswordHash)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "g-new", *user.GoogleID)

	_, err = svc.Login(ctx, "new@example.com", "whatever")
	assert.ErrorIs(t, err, ErrWrongAuthMethod)
}

func TestGoogleAuthLinksExistingEmail(t *testing.T) {
	ctx := context.Background()
	svc, s, _ := newTestAuth(t)

	existing, err := svc.CreateUser(ctx, CreateUserInput{Email: "link@example.com", Password: ptr("pw"), DisplayName: "Old Name"})
	require.NoError(t, err)

	sess, err := svc.GoogleAuth(ctx, GoogleAuthInput{GoogleID: "g-link", Email: "link@example.com", DisplayName: "New Name"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, sess.UserID)

	user, err := s.GetUserByGoogleID(ctx, "g-link")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, "New Name", user.DisplayName)

	// The password keeps working after linking.
	_, err = svc.Login(ctx, "link@example.com", "pw")
	assert.NoError(t, err)
}

func TestGoogleAuthPrefersGoogleID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuth(t)

	byGoogle, err := svc.CreateUser(ctx, CreateUserInput{Email: "first@example.com", DisplayName: "First", GoogleID: ptr("g-pref")})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "second@example.com", Password: ptr("pw"), DisplayName: "Second"})
	require.NoError(t, err)

	sess, err := svc.GoogleAuth(ctx, GoogleAuthInput{GoogleID: "g-pref", Email: "second@example.com", DisplayName: "First"})
	require.NoError(t, err)
	assert.Equal(t, byGoogle.ID, sess.UserID)
}

func TestGoogleAuthWithVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("matching token", func(t *testing.T) {
		v := &fakeVerifier{identity: &auth.GoogleIdentity{GoogleID: "g-v", Email: "V@example.com"}}
		svc, _, _ := newTestAuth(t, WithIDTokenVerifier(v))
		sess, err := svc.GoogleAuth(ctx, GoogleAuthInput{GoogleID: "g-v", Email: "v@example.com", DisplayName: "V", IDToken: "tok"})
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, 1, v.calls)
	})

	t.Run("mismatched identity", func(t *testing.T) {
		v := &fakeVerifier{identity: &auth.GoogleIdentity{GoogleID: "g-other", Email: "v@example.com"}}
		svc, _, _ := newTestAuth(t, WithIDTokenVerifier(v))
		_, err := svc.GoogleAuth(ctx, GoogleAuthInput{GoogleID: "g-v", Email: "v@example.com", DisplayName: "V", IDToken: "tok"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("rejected token", func(t *testing.T) {
		v := &fakeVerifier{err: auth.ErrInvalidIDToken}
		svc, _, _ := newTestAuth(t, WithIDTokenVerifier(v))
		_, err := svc.GoogleAuth(ctx, GoogleAuthInput{GoogleID: "g-v", Email: "v@example.com", DisplayName: "V"})
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, errors.Is(err, auth.ErrInvalidIDToken))
	})
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuth(t)

	user, err := svc.CreateUser(ctx, CreateUserInput{Email: "p@example.com", Password: ptr("pw"), DisplayName: "P"})
	require.NoError(t, err)

	got, err := svc.GetUserProfile(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "P", got.DisplayName)

	missing, err := svc.GetUserProfile(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	updated, err := svc.UpdateUserProfile(ctx, user.ID, ptr("Pat"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Pat", updated.DisplayName)
	assert.Nil(t, updated.AvatarURL)

	_, err = svc.UpdateUserProfile(ctx, "missing", ptr("x"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
