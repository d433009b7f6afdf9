package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"expense-tracker/internal/common"
	"expense-tracker/internal/logging"
	"expense-tracker/internal/storage"
)

const (
	MaxUsernameLength = 50
	MinPasswordLength = 8
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// TokenIssuer signs a session token for a subject.
type TokenIssuer interface {
	IssueDefault(subject string) (string, error)
}

// Accounts registers identities and exchanges credentials for tokens.
type Accounts struct {
	store  Store
	hasher PasswordHasher
	tokens TokenIssuer
	logger logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccounts(store Store, hasher PasswordHasher, tokens TokenIssuer, logger logging.Logger) *Accounts {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Accounts{store: store, hasher: hasher, tokens: tokens, logger: logger}
}

// ValidateCredentials checks the username and password shape. It returns
// the trimmed username.
func ValidateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", common.NewValidationError("username", "must not be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", common.NewValidationError("username", "must be at most %d characters", MaxUsernameLength)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "", common.NewValidationError("password", "must be at least %d characters", MinPasswordLength)
	}
	return username, nil
}

// Register creates a new identity and returns its ID.
func (a *Accounts) Register(ctx context.Context, username, password string) (int64, error) {
	username, err := ValidateCredentials(username, password)
	if err != nil {
		return 0, err
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	user, err := a.store.CreateUser(ctx, username, hash)
	if err != nil {
		return 0, storeError("create user", err)
	}

	a.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user.ID, nil
}

// Login verifies the credentials and issues a session token. Unknown users
// and wrong passwords both yield common.ErrUnauthorized. The username is
// trimmed the same way Register stores it.
func (a *Accounts) Login(ctx context.Context, username, password string) (string, error) {
	user, err := a.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return "", storeError("get user", err)
		}
		// Burn the same hashing work as a real check.
		a.hasher.Verify(password, a.dummy())
		a.logger.Debug(ctx, "login failed", "reason", "unknown user")
		return "", common.ErrUnauthorized
	}

	if !a.hasher.Verify(password, user.PasswordHash) {
		a.logger.Debug(ctx, "login failed", "reason", "bad password", "user_id", user.ID)
		return "", common.ErrUnauthorized
	}

	token, err := a.tokens.IssueDefault(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Logout has nothing to revoke: tokens stay valid until they expire. The
// caller is responsible for clearing the client's copy.
func (a *Accounts) Logout(ctx context.Context) {
	a.logger.Debug(ctx, "logout")
}

// Bootstrap registers username when the store has no identities yet. It is
// a no-op when username is empty or any user exists.
func (a *Accounts) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	if username == "" {
		return false, nil
	}
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return false, storeError("count users", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := a.Register(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Accounts) dummy() string {
	a.dummyOnce.Do(func() {
		h, err := a.hasher.Hash("not-a-real-password")
		if err != nil {
			a.logger.Warn(context.Background(), "dummy hash unavailable", "error", err)
		}
		a.dummyHash = h
	})
	return a.dummyHash
}
