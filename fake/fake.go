// Package fake provides in-memory implementations of the auth interfaces for
// testing.
//
// Use fake.NewProvider, fake.NewProfileStore, and fake.NewVerifier in unit
// tests to avoid network calls and external dependencies. The provider drives
// the same login/challenge protocol as the real one: accounts created with a
// non-permanent password answer the first login with a NEW_PASSWORD_REQUIRED
// challenge whose session is single-use.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	auth "github.com/grantlab/auth-go"
)

// Provider is an in-memory auth.IdentityProvider.
type Provider struct {
	mu       sync.RWMutex
	accounts map[string]*account // username → account
	sessions map[string]string   // challenge session → username
	tokens   map[string]string   // access token → username
	fail     map[string]error    // op → scripted failure
	nextID   int
}

type account struct {
	username  string
	password  string
	email     string
	permanent bool
	required  []string
}

// compile-time check
var _ auth.IdentityProvider = (*Provider)(nil)

// ProviderOption seeds the fake provider.
type ProviderOption func(*Provider)

// WithAccount adds an account with a permanent password (logs in directly).
func WithAccount(username, password, email string) ProviderOption {
	return func(p *Provider) {
		p.accounts[username] = &account{
			username: username, password: password, email: email, permanent: true,
		}
	}
}

// WithChallengedAccount adds an account whose next login answers with a
// NEW_PASSWORD_REQUIRED challenge listing the given required attributes.
func WithChallengedAccount(username, password, email string, required ...string) ProviderOption {
	return func(p *Provider) {
		p.accounts[username] = &account{
			username: username, password: password, email: email,
			permanent: false, required: required,
		}
	}
}

// WithFailure scripts an error for one operation (CreateAccount,
// SetPermanentPassword, InitiateAuth, RespondToChallenge, GetUserByToken).
func WithFailure(op string, err error) ProviderOption {
	return func(p *Provider) { p.fail[op] = err }
}

// NewProvider creates an in-memory identity provider.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		accounts: make(map[string]*account),
		sessions: make(map[string]string),
		tokens:   make(map[string]string),
		fail:     make(map[string]error),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) CreateAccount(_ context.Context, username, password, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.fail["CreateAccount"]; err != nil {
		return err
	}
	if _, ok := p.accounts[username]; ok {
		return &auth.ProviderError{Code: auth.CodeUserExists, Op: "CreateAccount", Message: "account exists"}
	}
	p.accounts[username] = &account{username: username, password: password, email: email}
	return nil
}

func (p *Provider) SetPermanentPassword(_ context.Context, username, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.fail["SetPermanentPassword"]; err != nil {
		return err
	}
	acct, ok := p.accounts[username]
	if !ok {
		return &auth.ProviderError{Code: auth.CodeUserNotFound, Op: "SetPermanentPassword", Message: "no such account"}
	}
	acct.password = password
	acct.permanent = true
	return nil
}

func (p *Provider) InitiateAuth(_ context.Context, username, password string) (*auth.AuthOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.fail["InitiateAuth"]; err != nil {
		return nil, err
	}
	acct, ok := p.accounts[username]
	if !ok || acct.password != password {
		return nil, &auth.ProviderError{Code: auth.CodeNotAuthorized, Op: "InitiateAuth", Message: "incorrect username or password"}
	}

	if !acct.permanent {
		p.nextID++
		session := fmt.Sprintf("session-%d", p.nextID)
		p.sessions[session] = username
		return &auth.AuthOutcome{
			Challenge: &auth.Challenge{
				Session:            session,
				RequiredAttributes: append([]string(nil), acct.required...),
				Username:           username,
			},
		}, nil
	}

	return &auth.AuthOutcome{Tokens: p.issueTokens(acct)}, nil
}

func (p *Provider) RespondToChallenge(_ context.Context, session, username, newPassword string, _ map[string]string) (*auth.SessionTokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.fail["RespondToChallenge"]; err != nil {
		return nil, err
	}
	owner, ok := p.sessions[session]
	if !ok || owner != username {
		return nil, &auth.ProviderError{Code: auth.CodeNotAuthorized, Op: "RespondToAuthChallenge", Message: "invalid session"}
	}
	// Sessions are consumed exactly once.
	delete(p.sessions, session)

	acct := p.accounts[username]
	acct.password = newPassword
	acct.permanent = true
	return p.issueTokens(acct), nil
}

// AddToken registers accessToken as belonging to an existing account, as if
// it had been issued by a login.
func (p *Provider) AddToken(accessToken, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[accessToken] = username
}

func (p *Provider) GetUserByToken(_ context.Context, accessToken string) (*auth.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.fail["GetUserByToken"]; err != nil {
		return nil, err
	}
	username, ok := p.tokens[accessToken]
	if !ok {
		return nil, &auth.ProviderError{Code: auth.CodeNotAuthorized, Op: "GetUser", Message: "invalid access token"}
	}
	acct := p.accounts[username]
	return &auth.Account{Username: acct.username, Email: acct.email}, nil
}

// issueTokens mints a fresh token set for acct. Callers hold p.mu.
func (p *Provider) issueTokens(acct *account) *auth.SessionTokens {
	p.nextID++
	tokens := &auth.SessionTokens{
		AccessToken:  fmt.Sprintf("access-%s-%d", acct.username, p.nextID),
		IDToken:      fmt.Sprintf("id-%s-%d", acct.username, p.nextID),
		RefreshToken: fmt.Sprintf("refresh-%s-%d", acct.username, p.nextID),
	}
	p.tokens[tokens.AccessToken] = acct.username
	return tokens
}

// ProfileStore is an in-memory auth.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]auth.Profile // email → profile
	puts     int
	failGet  error
	failPut  error
}

// compile-time check
var _ auth.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore creates an empty in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]auth.Profile)}
}

// Seed inserts a profile without counting as a Put.
func (s *ProfileStore) Seed(profile auth.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.Email] = profile
}

// FailWith scripts errors for Get and/or Put. Pass nil to leave an op intact.
func (s *ProfileStore) FailWith(getErr, putErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet, s.failPut = getErr, putErr
}

func (s *ProfileStore) Get(_ context.Context, email string) (*auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failGet != nil {
		return nil, s.failGet
	}
	profile, ok := s.profiles[email]
	if !ok {
		return nil, auth.ErrProfileNotFound
	}
	return &profile, nil
}

func (s *ProfileStore) Put(_ context.Context, profile *auth.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failPut != nil {
		return s.failPut
	}
	s.profiles[profile.Email] = *profile
	s.puts++
	return nil
}

// Puts returns how many Put calls landed.
func (s *ProfileStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Verifier is an in-memory auth.TokenVerifier mapping literal token strings
// to claim sets.
type Verifier struct {
	mu     sync.RWMutex
	claims map[string]*auth.Claims
}

// compile-time check
var _ auth.TokenVerifier = (*Verifier)(nil)

// NewVerifier creates an empty fake verifier.
func NewVerifier() *Verifier {
	return &Verifier{claims: make(map[string]*auth.Claims)}
}

// AddToken registers a token string with the claims Verify should return.
func (v *Verifier) AddToken(token string, claims *auth.Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if claims.ExpiresAt.IsZero() {
		claims.ExpiresAt = time.Now().Add(1 * time.Hour)
	}
	v.claims[token] = claims
}

func (v *Verifier) Verify(_ context.Context, token string) (*auth.Claims, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	claims, ok := v.claims[token]
	if !ok {
		return nil, fmt.Errorf("auth/fake: unknown token %q", token)
	}
	if time.Now().After(claims.ExpiresAt) {
		return nil, fmt.Errorf("auth/fake: token %q is expired", token)
	}
	return claims, nil
}
