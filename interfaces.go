package auth

import "context"

// IdentityProvider is the narrow capability surface this subsystem needs from
// the managed identity provider. The provider owns credentials end to end;
// passwords pass through these calls and are never stored here.
// Implementations: cognito/ (AWS Cognito user pools), fake/ (testing).
type IdentityProvider interface {
	// CreateAccount constructs the account on the provider without signing
	// the user in.
	CreateAccount(ctx context.Context, username, password, email string) error

	// SetPermanentPassword marks the account's password as permanent so the
	// first login does not force a reset.
	SetPermanentPassword(ctx context.Context, username, password string) error

	// InitiateAuth starts the password-based authentication flow. The outcome
	// carries either issued tokens or a challenge, never both.
	InitiateAuth(ctx context.Context, username, password string) (*AuthOutcome, error)

	// RespondToChallenge resumes a pending NEW_PASSWORD_REQUIRED challenge.
	// The session must be the one issued by the preceding InitiateAuth call.
	// Extra attributes (e.g. email) are included only when supplied.
	RespondToChallenge(ctx context.Context, session, username, newPassword string, attributes map[string]string) (*SessionTokens, error)

	// GetUserByToken re-derives the caller's identity from a bearer access
	// token, rejecting tokens the provider no longer honors.
	GetUserByToken(ctx context.Context, accessToken string) (*Account, error)
}

// AuthOutcome is the raw provider response to InitiateAuth. Tokens may be
// partially filled on a misbehaving provider; the service validates
// completeness before surfacing them.
type AuthOutcome struct {
	Tokens    *SessionTokens
	Challenge *Challenge
}

// ProfileStore is the durable key/value store holding one profile record per
// user. Put is a single idempotent upsert, safe to repeat or leak after a
// client disconnect.
// Implementations: dynamo/ (DynamoDB table), fake/ (testing).
type ProfileStore interface {
	// Get returns the profile for the given email, or ErrProfileNotFound.
	Get(ctx context.Context, email string) (*Profile, error)

	// Put creates or replaces the profile record.
	Put(ctx context.Context, profile *Profile) error
}

// TokenVerifier verifies signed bearer tokens and extracts claims.
// Implementations: jwks/ (JWT via the provider's published keys), fake/ (testing).
type TokenVerifier interface {
	// Verify validates the token signature and expiry and returns the claims.
	Verify(ctx context.Context, token string) (*Claims, error)
}
