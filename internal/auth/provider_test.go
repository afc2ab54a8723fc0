package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"

	database "looplib/internal/db"
	"looplib/internal/models"
	"looplib/internal/profile"
)

type memProfiles struct {
	mu      sync.Mutex
	docs    map[string]models.Profile
	failPut bool
}

func (m *memProfiles) Get(_ context.Context, uid string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.docs[uid]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return &p, nil
}

func (m *memProfiles) Put(_ context.Context, p *models.Profile) error {
	if m.failPut {
		return errors.New("mongo unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[p.UID] = *p
	return nil
}

func newProvider(t *testing.T) (*Provider, *memProfiles) {
	t.Helper()
	client, err := database.Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	require.NoError(t, client.AutoMigrate(false))
	t.Cleanup(func() { _ = client.Close() })

	profiles := &memProfiles{docs: map[string]models.Profile{}}
	return NewProvider(client.DB, profiles, NewTokenManager("test-secret", time.Hour), nil), profiles
}

func TestSignUpValidation(t *testing.T) {
	p, _ := newProvider(t)

	tests := []struct {
		name string
		in   SignUpInput
		code string
		form string
	}{
		{"missing username", SignUpInput{Email: "a@example.com", Password: "secret1"}, CodeMissingFields, "All fields are required."},
		{"missing email", SignUpInput{Username: "anna", Password: "secret1"}, CodeMissingFields, "All fields are required."},
		{"missing password", SignUpInput{Username: "anna", Email: "a@example.com"}, CodeMissingFields, "All fields are required."},
		{"short password", SignUpInput{Username: "anna", Email: "a@example.com", Password: "12345"}, CodeWeakPassword, "Password must be at least 6 characters long."},
		{"bad email", SignUpInput{Username: "anna", Email: "not-an-email", Password: "123456"}, CodeInvalidEmail, "Invalid email format."},
		{"password over bcrypt limit", SignUpInput{Username: "anna", Email: "a@example.com", Password: strings.Repeat("p", 73)}, CodeWeakPassword, "Password must be at most 72 characters long."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignUp(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.Equal(t, tt.form, FormMessage(err))
		})
	}
}

func TestSignUpCreatesAccountAndProfile(t *testing.T) {
	p, profiles := newProvider(t)
	ctx := context.Background()

	sess, err := p.SignUp(ctx, SignUpInput{Username: "anna", Email: " Anna@Example.com ", Password: "123456"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)

	acct := sess.Account
	assert.Equal(t, "anna@example.com", acct.Email)
	assert.Equal(t, "anna", acct.DisplayName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte("123456")))

	doc, err := profiles.Get(ctx, acct.UID)
	require.NoError(t, err)
	assert.Equal(t, "anna", doc.Username)
	assert.Equal(t, "anna@example.com", doc.Email)
	assert.Equal(t, acct.UID, doc.UID)
	assert.False(t, doc.CreatedAt.IsZero())

	claims, err := p.Tokens().Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, acct.UID, claims.Subject)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, SignUpInput{Username: "anna", Email: "anna@example.com", Password: "123456"})
	require.NoError(t, err)
	_, err = p.SignUp(ctx, SignUpInput{Username: "other", Email: "ANNA@example.com", Password: "abcdef"})
	assert.Equal(t, CodeEmailInUse, CodeOf(err))
	assert.Equal(t, "Email is already in use.", BannerMessage(err))
}

func TestSignUpProfileFailureKeepsAccount(t *testing.T) {
	p, profiles := newProvider(t)
	profiles.failPut = true

	sess, err := p.SignUp(context.Background(), SignUpInput{Username: "anna", Email: "anna@example.com", Password: "123456"})
	require.NoError(t, err)

	_, err = p.Account(context.Background(), sess.Account.UID)
	assert.NoError(t, err)
}

func TestSeedAccountNormalizesEmail(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	created, err := p.SeedAccount(ctx, " Demo@Example.COM ", "demo-pass", "demo")
	require.NoError(t, err)
	assert.True(t, created)

	sess, err := p.SignIn(ctx, "demo@example.com", "demo-pass")
	require.NoError(t, err)
	assert.Equal(t, "demo@example.com", sess.Account.Email)
	assert.Equal(t, "demo", sess.Account.DisplayName)

	created, err = p.SeedAccount(ctx, "demo@example.com", "other-pass", "demo")
	require.NoError(t, err)
	assert.False(t, created, "seeding twice keeps the first account")

	_, err = p.SeedAccount(ctx, "demo@example.com", strings.Repeat("p", 100), "demo")
	assert.Equal(t, CodeWeakPassword, CodeOf(err))
}

func TestSignIn(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	_, err := p.SignUp(ctx, SignUpInput{Username: "anna", Email: "anna@example.com", Password: "123456"})
	require.NoError(t, err)

	sess, err := p.SignIn(ctx, "anna@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "anna", sess.Account.DisplayName)

	_, err = p.SignIn(ctx, "anna@example.com", "wrong-pass")
	assert.Equal(t, CodeWrongPassword, CodeOf(err))
	assert.Equal(t, "Invalid email or password.", BannerMessage(err))

	_, err = p.SignIn(ctx, "nobody@example.com", "123456")
	assert.Equal(t, CodeUserNotFound, CodeOf(err))
	assert.Equal(t, "Invalid email or password.", BannerMessage(err))
}

func TestSignOutRevokesToken(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	sess, err := p.SignUp(ctx, SignUpInput{Username: "anna", Email: "anna@example.com", Password: "123456"})
	require.NoError(t, err)

	claims, err := p.Tokens().Parse(sess.Token)
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx, claims))

	_, err = p.Tokens().Parse(sess.Token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestUpdateProfile(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	sess, err := p.SignUp(ctx, SignUpInput{Username: "anna", Email: "anna@example.com", Password: "123456"})
	require.NoError(t, err)

	acct, err := p.UpdateProfile(ctx, sess.Account.UID, "Anna Z")
	require.NoError(t, err)
	assert.Equal(t, "Anna Z", acct.DisplayName)

	stored, err := p.Account(ctx, sess.Account.UID)
	require.NoError(t, err)
	assert.Equal(t, "Anna Z", stored.DisplayName)

	_, err = p.UpdateProfile(ctx, "missing", "x")
	assert.Equal(t, CodeUserNotFound, CodeOf(err))
}

func TestOnAuthStateChanged(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	var got []string
	unsubA := p.OnAuthStateChanged(func(ev Event) { got = append(got, "a:"+string(ev.Kind)) })
	unsubB := p.OnAuthStateChanged(func(ev Event) { got = append(got, "b:"+string(ev.Kind)) })

	sess, err := p.SignUp(ctx, SignUpInput{Username: "anna", Email: "anna@example.com", Password: "123456"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:signed_up", "b:signed_up"}, got)

	unsubA()
	unsubA()
	got = nil
	require.NoError(t, p.SignOut(ctx, sess.Claims))
	assert.Equal(t, []string{"b:signed_out"}, got)

	unsubB()
	got = nil
	_, err = p.SignIn(ctx, "anna@example.com", "123456")
	require.NoError(t, err)
	assert.Empty(t, got)
}
