// Package auth is the email/password identity provider: accounts live in the
// relational database, sessions are signed JWTs, and every session change is
// published to registered listeners.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	database "looplib/internal/db"
	"looplib/internal/logging"
	"looplib/internal/models"
	"looplib/internal/profile"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is bcrypt's input limit, in bytes.
	MaxPasswordLength = 72
)

var ErrTooManyRequests = &Error{Code: CodeTooManyRequests}

type EventKind string

const (
	SignedUp       EventKind = "signed_up"
	SignedIn       EventKind = "signed_in"
	SignedOut      EventKind = "signed_out"
	ProfileUpdated EventKind = "profile_updated"
)

// Event describes a session change. Account is nil for SignedOut.
type Event struct {
	Kind    EventKind
	UID     string
	Account *models.Account
}

type Listener func(Event)

type SignUpInput struct {
	Username string
	Email    string
	Password string
}

type Session struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"user"`
	Claims  *Claims         `json:"-"`
}

type Provider struct {
	db       *gorm.DB
	profiles profile.Store
	tokens   *TokenManager
	log      *slog.Logger

	mu        sync.Mutex
	nextID    int
	listeners []listenerEntry
}

type listenerEntry struct {
	id int
	fn Listener
}

func NewProvider(db *gorm.DB, profiles profile.Store, tokens *TokenManager, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		db:       db,
		profiles: profiles,
		tokens:   tokens,
		log:      logger.With("component", "auth"),
	}
}

func (p *Provider) Tokens() *TokenManager { return p.tokens }

// SignUp creates the account, names it after the username and writes the
// profile document. A failed profile write leaves the account in place.
func (p *Provider) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, &Error{Code: CodeMissingFields, Msg: "All fields are required."}
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	if !validEmail(email) {
		return nil, newError(CodeInvalidEmail, nil)
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, internalError("lookup account", err)
	}
	if count > 0 {
		return nil, newError(CodeEmailInUse, nil)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	acct := &models.Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  username,
	}
	if err := p.db.WithContext(ctx).Create(acct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(CodeEmailInUse, err)
		}
		return nil, internalError("create account", err)
	}

	prof := &models.Profile{
		UID:       acct.UID,
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.profiles.Put(ctx, prof); err != nil {
		p.log.Error("error writing profile", "uid", acct.UID, "email", logging.MaskEmail(email), "error", err)
	}

	sess, err := p.newSession(acct)
	if err != nil {
		return nil, err
	}
	p.log.Info("account created", "uid", acct.UID)
	p.emit(Event{Kind: SignedUp, UID: acct.UID, Account: acct})
	return sess, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, &Error{Code: CodeMissingFields, Msg: "All fields are required."}
	}
	if !validEmail(email) {
		return nil, newError(CodeInvalidEmail, nil)
	}

	var acct models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeUserNotFound, nil)
	}
	if err != nil {
		return nil, internalError("lookup account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, newError(CodeWrongPassword, nil)
	}

	sess, err := p.newSession(&acct)
	if err != nil {
		return nil, err
	}
	p.emit(Event{Kind: SignedIn, UID: acct.UID, Account: &acct})
	return sess, nil
}

// SignOut revokes the session token.
func (p *Provider) SignOut(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.Subject == "" {
		return newError(CodeInvalidCredential, ErrInvalidToken)
	}
	p.tokens.Revoke(claims)
	p.emit(Event{Kind: SignedOut, UID: claims.Subject})
	return nil
}

func (p *Provider) UpdateProfile(ctx context.Context, uid, displayName string) (*models.Account, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, &Error{Code: CodeMissingFields, Msg: "All fields are required."}
	}

	acct, err := p.Account(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := p.db.WithContext(ctx).Model(acct).Update("display_name", displayName).Error; err != nil {
		return nil, internalError("update account", err)
	}
	acct.DisplayName = displayName

	p.emit(Event{Kind: ProfileUpdated, UID: uid, Account: acct})
	return acct, nil
}

// SeedAccount creates an account for email unless one exists. The email is
// normalized the same way SignUp and SignIn do. No profile document is written.
func (p *Provider) SeedAccount(ctx context.Context, email, password, displayName string) (bool, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return false, newError(CodeInvalidEmail, nil)
	}
	if err := checkPassword(password); err != nil {
		return false, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}

	created, err := database.SeedAccounts(p.db.WithContext(ctx), []models.Account{{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}})
	if err != nil {
		return false, internalError("seed account", err)
	}
	return created > 0, nil
}

func (p *Provider) Account(ctx context.Context, uid string) (*models.Account, error) {
	var acct models.Account
	err := p.db.WithContext(ctx).First(&acct, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeUserNotFound, err)
	}
	if err != nil {
		return nil, internalError("lookup account", err)
	}
	return &acct, nil
}

// OnAuthStateChanged registers fn for session changes. Listeners run on the
// caller's goroutine in registration order. The returned func unsubscribes
// and may be called more than once.
func (p *Provider) OnAuthStateChanged(fn Listener) (unsubscribe func()) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, l := range p.listeners {
				if l.id == id {
					p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (p *Provider) emit(ev Event) {
	p.mu.Lock()
	snapshot := make([]Listener, len(p.listeners))
	for i, l := range p.listeners {
		snapshot[i] = l.fn
	}
	p.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

func (p *Provider) newSession(acct *models.Account) (*Session, error) {
	token, claims, err := p.tokens.Issue(acct.UID, acct.Email)
	if err != nil {
		return nil, internalError("issue token", err)
	}
	return &Session{Token: token, Account: acct, Claims: claims}, nil
}

func checkPassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return &Error{Code: CodeWeakPassword, Msg: "Password must be at least 6 characters long."}
	case len(password) > MaxPasswordLength:
		return &Error{Code: CodeWeakPassword, Msg: "Password must be at most 72 characters long."}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &Error{Code: CodeWeakPassword, Msg: "Password must be at most 72 characters long.", Err: err}
	}
	if err != nil {
		return "", internalError("hash password", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}
