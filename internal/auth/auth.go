// Package auth implements the authentication collaborator of the chat
// client: account creation, password sign-in, external-credential sign-in
// (Facebook/Google style), sign-out, and the current-identity probe.
//
// Credential records live under a reserved "accounts" subtree of the
// document store, separate from user-owned subtrees. A session is a signed
// token held in memory by the provider; nothing here writes the user's
// profile record, that belongs to the directory.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/identity"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/store"
)

// ExternalCredential is a third-party sign-in credential. Token is opaque to
// this package; the injected verifier decides whether it is genuine.
type ExternalCredential struct {
	Provider    string // e.g. "facebook", "google"
	Email       string
	DisplayName string
	Token       string
}

// TokenVerifier checks an external credential with its issuing provider.
type TokenVerifier func(ctx context.Context, cred ExternalCredential) error

// Provider is the auth contract consumed by the rest of the client.
type Provider interface {
	CreateAccount(ctx context.Context, email string, password []byte) (identity.ID, error)
	SignIn(ctx context.Context, email string, password []byte) (identity.ID, error)
	SignInExternal(ctx context.Context, cred ExternalCredential) (identity.ID, error)
	SignOut()
	CurrentIdentity() (identity.ID, bool)
}

// Service is the concrete Provider backed by the document store.
type Service struct {
	store  store.Store
	verify TokenVerifier
	secret []byte
	ttl    time.Duration
	log    logging.Logger

	mu    sync.Mutex
	token string
}

func NewService(s store.Store, verify TokenVerifier, secret []byte, ttl time.Duration, log logging.Logger) *Service {
	return &Service{store: s, verify: verify, secret: secret, ttl: ttl, log: log}
}

func accountPath(id identity.ID) string {
	return "accounts/" + id.String()
}

// CreateAccount registers a credential record for email. Returns
// common.ErrAlreadyExists when an account with the same normalized identity
// exists.
func (a *Service) CreateAccount(ctx context.Context, email string, password []byte) (identity.ID, error) {
	id := identity.Normalize(email)

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	err = store.UpdateTx(ctx, a.store, accountPath(id), func(snap store.Snapshot) (any, error) {
		if snap.Exists() {
			return nil, fmt.Errorf("account %s: %w", id, common.ErrAlreadyExists)
		}
		return map[string]any{"password_hash": string(hash)}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SignIn verifies the password against the stored hash and opens a session.
// Wrong password and unknown account both map to common.ErrUnauthorized.
func (a *Service) SignIn(ctx context.Context, email string, password []byte) (identity.ID, error) {
	id := identity.Normalize(email)

	snap, err := a.store.Read(ctx, accountPath(id))
	if err != nil {
		return "", fmt.Errorf("read account: %w", err)
	}
	if !snap.Exists() {
		return "", fmt.Errorf("account %s: %w", id, common.ErrUnauthorized)
	}
	record, ok := snap.Value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("account %s: malformed record: %w", id, common.ErrFetch)
	}
	hash, ok := record["password_hash"].(string)
	if !ok {
		// external-only account; no password to check
		return "", fmt.Errorf("account %s: %w", id, common.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), password) != nil {
		return "", fmt.Errorf("account %s: %w", id, common.ErrUnauthorized)
	}

	return id, a.openSession(ctx, id)
}

// SignInExternal verifies the credential with its provider and opens a
// session, provisioning the account record on first sign-in.
func (a *Service) SignInExternal(ctx context.Context, cred ExternalCredential) (identity.ID, error) {
	if a.verify == nil {
		return "", fmt.Errorf("no verifier for provider %q: %w", cred.Provider, common.ErrUnauthorized)
	}
	if err := a.verify(ctx, cred); err != nil {
		return "", fmt.Errorf("%s credential rejected: %w", cred.Provider, err)
	}

	id := identity.Normalize(cred.Email)
	err := store.UpdateTx(ctx, a.store, accountPath(id), func(snap store.Snapshot) (any, error) {
		if snap.Exists() {
			return snap.Value, nil
		}
		a.log.Info(ctx, "provisioning external account", "identity", id, "provider", cred.Provider)
		return map[string]any{"provider": cred.Provider}, nil
	})
	if err != nil {
		return "", err
	}

	return id, a.openSession(ctx, id)
}

// SignOut drops the session. Safe to call when signed out.
func (a *Service) SignOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
}

// CurrentIdentity returns the signed-in identity, if the session token is
// still valid.
func (a *Service) CurrentIdentity() (identity.ID, bool) {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()

	if token == "" {
		return "", false
	}
	id, err := IdentityFromToken(token, a.secret)
	if err != nil {
		return "", false
	}
	return id, true
}

func (a *Service) openSession(ctx context.Context, id identity.ID) error {
	token, err := GenerateToken(id, a.secret, a.ttl)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	a.log.Debug(ctx, "session opened", "identity", id)
	return nil
}
