package auth

import "time"

// Roles recognized by the grant-tracking application. The identity provider
// owns credentials; roles live on the profile record and in token group
// claims.
const (
	// RoleUnassigned is the role given to a freshly provisioned profile.
	// An administrator promotes the account through the profile-update path.
	RoleUnassigned = "unassigned"

	// RoleAdmin is the group claim required by the admin-only guard.
	RoleAdmin = "admin"
)

// SessionTokens holds the token set issued by the identity provider after a
// completed authentication. Tokens are never persisted server-side; ownership
// is fully client-side after issuance.
type SessionTokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// Challenge describes an additional step the identity provider demands before
// tokens are issued (a mandated password change). The session token is opaque,
// single-use, and expires per provider policy.
type Challenge struct {
	Session            string
	RequiredAttributes []string
	Username           string
}

// Profile is the single durable record this subsystem touches: one row per
// user in the profile store, keyed by the provider-verified email.
type Profile struct {
	Email string
	Role  string
	Name  string
}

// Account is the identity the provider reports for a verified access token.
type Account struct {
	Username string
	Email    string
}

// Claims represents the verified claim set extracted from a signed token.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Groups    []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
	TokenUse  string
	Extra     map[string]any
}

// HasGroup reports whether the claim set carries the given group/role claim.
func (c *Claims) HasGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// LoginResult is the outcome of a login call. Exactly one branch is set:
// either Tokens and Profile (authentication completed) or Challenge (the
// provider demands a follow-up step). Use the constructors; a result never
// carries both tokens and a challenge.
type LoginResult struct {
	Tokens    *SessionTokens
	Profile   *Profile
	Challenge *Challenge
}

// Authenticated reports whether the login completed with issued tokens.
func (r *LoginResult) Authenticated() bool { return r.Tokens != nil }

// ChallengeRequired reports whether the login stopped at a provider challenge.
func (r *LoginResult) ChallengeRequired() bool { return r.Challenge != nil }

// AuthenticatedResult builds the completed-login outcome.
func AuthenticatedResult(tokens *SessionTokens, profile *Profile) *LoginResult {
	return &LoginResult{Tokens: tokens, Profile: profile}
}

// ChallengeResult builds the challenge-required outcome. No tokens are issued
// in this branch.
func ChallengeResult(ch *Challenge) *LoginResult {
	return &LoginResult{Challenge: ch}
}
