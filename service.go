// Package auth implements the authentication core of the grant-tracking
// backend: account registration and the login/challenge state machine against
// a managed identity provider, session validation, and the shared types and
// error taxonomy the guards and HTTP layer build on.
//
// The provider and profile store are injected behind narrow interfaces, so
// tests substitute the in-memory fake/ package without touching global state:
//
//	svc := auth.NewService(cognitoProvider, dynamoStore,
//	    auth.WithLogger(logger),
//	    auth.WithMetrics(m),
//	)
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/grantlab/auth-go/audit"
	"github.com/grantlab/auth-go/metrics"
)

// Service orchestrates register, login, challenge resolution, and session
// validation. It is stateless across requests: no token cache, no refresh,
// no session table. Two concurrent logins for the same username are fully
// independent. Retry policy belongs to the caller; a provider failure
// surfaces immediately as a typed error.
type Service struct {
	provider IdentityProvider
	profiles ProfileStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    *audit.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink for flow outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit sets the audit logger for authentication events.
func WithAudit(a *audit.Logger) Option {
	return func(s *Service) { s.audit = a }
}

// NewService creates an auth service over the given provider and profile store.
func NewService(provider IdentityProvider, profiles ProfileStore, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		profiles: profiles,
		logger:   slog.Default(),
		metrics:  metrics.New(false),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register constructs the account on the provider (no sign-in), sets the
// password as permanent, and creates the profile row with the default role.
// The profile write happens only after both provider calls succeed, so no
// partial state is visible to later reads. An existing account surfaces as
// ErrAccountExists; any other provider failure passes through tagged.
func (s *Service) Register(ctx context.Context, username, password, email string) error {
	if err := s.provider.CreateAccount(ctx, username, password, email); err != nil {
		if ProviderCodeOf(err) == CodeUserExists {
			s.record(ctx, audit.ActionRegister, "conflict", username, email, err)
			return fmt.Errorf("%w: %s", ErrAccountExists, username)
		}
		s.record(ctx, audit.ActionRegister, "error", username, email, err)
		return err
	}

	if err := s.provider.SetPermanentPassword(ctx, username, password); err != nil {
		s.record(ctx, audit.ActionRegister, "error", username, email, err)
		return err
	}

	if err := s.profiles.Put(ctx, &Profile{Email: email, Role: RoleUnassigned}); err != nil {
		s.record(ctx, audit.ActionRegister, "error", username, email, err)
		return &AuthError{Reason: "failed to create profile", Err: err}
	}

	s.record(ctx, audit.ActionRegister, "created", username, email, nil)
	return nil
}

// Login initiates the password-based authentication flow. Exactly one of
// three outcomes occurs per call: an Authenticated result carrying tokens and
// the (lazily provisioned) profile, a ChallengeRequired result carrying the
// provider's session token and required attributes, or a typed error.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	out, err := s.provider.InitiateAuth(ctx, username, password)
	if err != nil {
		return nil, s.mapLoginError(ctx, username, err)
	}

	if out.Challenge != nil {
		s.record(ctx, audit.ActionLogin, "challenge", username, "", nil)
		return ChallengeResult(out.Challenge), nil
	}

	// A provider that returns neither a challenge nor a complete token pair
	// has violated its protocol; surface it instead of handing back a
	// partially-filled result.
	tokens := out.Tokens
	if tokens == nil || tokens.AccessToken == "" || tokens.IDToken == "" {
		err := &AuthError{Reason: "missing tokens"}
		s.record(ctx, audit.ActionLogin, "error", username, "", err)
		return nil, err
	}

	account, err := s.provider.GetUserByToken(ctx, tokens.AccessToken)
	if err != nil {
		return nil, s.mapLoginError(ctx, username, err)
	}

	profile, err := s.ensureProfile(ctx, account)
	if err != nil {
		s.record(ctx, audit.ActionLogin, "error", username, account.Email, err)
		return nil, err
	}

	s.record(ctx, audit.ActionLogin, "authenticated", username, account.Email, nil)
	return AuthenticatedResult(tokens, profile), nil
}

// SetNewPassword resumes a pending NEW_PASSWORD_REQUIRED challenge. The
// session must be the one issued by the preceding Login call; the provider
// rejects stale or foreign sessions, which surfaces as ErrInvalidChallenge.
// email is forwarded only when non-empty, for providers that listed it among
// the challenge's required attributes.
func (s *Service) SetNewPassword(ctx context.Context, newPassword, session, username, email string) (*SessionTokens, error) {
	var attributes map[string]string
	if email != "" {
		attributes = map[string]string{"email": email}
	}

	tokens, err := s.provider.RespondToChallenge(ctx, session, username, newPassword, attributes)
	if err != nil {
		switch ProviderCodeOf(err) {
		case CodeNotAuthorized, CodeChallengeExpired:
			s.record(ctx, audit.ActionChallenge, "invalid_session", username, email, err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
		}
		var pe *ProviderError
		if errors.As(err, &pe) {
			s.record(ctx, audit.ActionChallenge, "error", username, email, err)
			return nil, err
		}
		s.record(ctx, audit.ActionChallenge, "error", username, email, err)
		return nil, &AuthError{Reason: "failed to set new password", Err: err}
	}

	if tokens == nil || tokens.IDToken == "" {
		err := &AuthError{Reason: "failed to set new password"}
		s.record(ctx, audit.ActionChallenge, "error", username, email, err)
		return nil, err
	}

	s.record(ctx, audit.ActionChallenge, "resolved", username, email, nil)
	return tokens, nil
}

// ValidateSession re-derives the caller's identity from a bearer access token
// and loads the matching profile. Unlike Login, a missing profile here is an
// integrity fault, not an invitation to provision: the row should exist.
func (s *Service) ValidateSession(ctx context.Context, accessToken string) (*Profile, error) {
	account, err := s.provider.GetUserByToken(ctx, accessToken)
	if err != nil {
		s.record(ctx, audit.ActionSessionCheck, "invalid", "", "", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	profile, err := s.profiles.Get(ctx, account.Email)
	if err != nil {
		s.record(ctx, audit.ActionSessionCheck, "invalid", account.Username, account.Email, err)
		if errors.Is(err, ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: no profile for %s", ErrSessionInvalid, account.Email)
		}
		return nil, err
	}

	s.record(ctx, audit.ActionSessionCheck, "valid", account.Username, account.Email, nil)
	return profile, nil
}

// ensureProfile looks up the profile for the authenticated account, creating
// one with the default role on first login. The upsert is idempotent; a
// concurrent first login for the same user lands the same row.
func (s *Service) ensureProfile(ctx context.Context, account *Account) (*Profile, error) {
	profile, err := s.profiles.Get(ctx, account.Email)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	profile = &Profile{Email: account.Email, Role: RoleUnassigned}
	if err := s.profiles.Put(ctx, profile); err != nil {
		return nil, &AuthError{Reason: "failed to create profile", Err: err}
	}
	s.logger.Info("provisioned profile on first login", "email", account.Email)
	return profile, nil
}

// mapLoginError collapses provider rejections onto the public taxonomy: a
// "not authorized" code becomes the generic invalid-credentials error, other
// tagged provider failures pass through, and anything else is wrapped.
func (s *Service) mapLoginError(ctx context.Context, username string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Code == CodeNotAuthorized || pe.Code == CodeUserNotFound {
			s.record(ctx, audit.ActionLogin, "invalid_credentials", username, "", err)
			return ErrInvalidCredentials
		}
		s.record(ctx, audit.ActionLogin, "error", username, "", err)
		return err
	}
	s.record(ctx, audit.ActionLogin, "error", username, "", err)
	return &AuthError{Reason: "login failed", Err: err}
}

// record fans one flow outcome out to log, metrics, and audit. Full error
// detail is for operators only; public surfaces get generic messages. Request
// tags carried on the context (request ID, caller IP, user agent) land on the
// audit event.
func (s *Service) record(ctx context.Context, action, outcome, username, email string, err error) {
	switch action {
	case audit.ActionRegister:
		s.metrics.RecordRegister(outcome)
	case audit.ActionLogin:
		s.metrics.RecordLogin(outcome)
	case audit.ActionChallenge:
		s.metrics.RecordChallenge(outcome)
	case audit.ActionSessionCheck:
		s.metrics.RecordSessionCheck(outcome)
	}

	if err != nil {
		s.logger.Warn("auth flow failed", "action", action, "outcome", outcome, "username", username, "error", err)
	} else {
		s.logger.Debug("auth flow completed", "action", action, "outcome", outcome, "username", username)
	}

	if s.audit != nil {
		e := audit.Event{
			RequestID: audit.RequestID(ctx),
			Action:    action,
			Result:    outcome,
			Username:  username,
			Email:     email,
			IP:        audit.ClientIP(ctx),
			UserAgent: audit.UserAgent(ctx),
		}
		if err != nil {
			e.Error = err.Error()
		}
		s.audit.Log(e)
	}
}
