package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the public failure taxonomy. Callers match with
// errors.Is; the HTTP layer translates them to status codes with generic
// messages so provider detail never reaches clients.
var (
	// ErrInvalidCredentials covers every provider "not authorized" rejection
	// of a username/password pair. The message is deliberately generic.
	ErrInvalidCredentials = errors.New("auth: incorrect username or password")

	// ErrInvalidChallenge means a stale or foreign session token was
	// presented when resolving a password challenge.
	ErrInvalidChallenge = errors.New("auth: challenge session is invalid or expired")

	// ErrSessionInvalid means token verification failed or no matching
	// profile exists for an otherwise valid token.
	ErrSessionInvalid = errors.New("auth: session is invalid")

	// ErrAccountExists is returned by Register when the provider already
	// holds an account for the username.
	ErrAccountExists = errors.New("auth: account already exists")

	// ErrProfileNotFound is returned by ProfileStore.Get for a missing row.
	ErrProfileNotFound = errors.New("auth: profile not found")
)

// ConfigError reports a required configuration value that was absent at call
// time. Provider calls must never proceed with a wrong or empty secret, since
// the resulting rejection is indistinguishable from a bad password.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("auth: missing required configuration: %s", e.Missing)
}

// ProviderCode is the closed set of provider failure categories. Codes are
// assigned once, at the provider-client boundary; nothing upstream probes raw
// provider error shapes.
type ProviderCode string

const (
	CodeNotAuthorized    ProviderCode = "not_authorized"
	CodeUserExists       ProviderCode = "user_exists"
	CodeUserNotFound     ProviderCode = "user_not_found"
	CodeInvalidPassword  ProviderCode = "invalid_password"
	CodeInvalidParameter ProviderCode = "invalid_parameter"
	CodeChallengeExpired ProviderCode = "challenge_expired"
	CodeThrottled        ProviderCode = "throttled"
	CodeUnavailable      ProviderCode = "unavailable"
	CodeUnknown          ProviderCode = "unknown"
)

// ProviderError is a tagged provider-side failure: rate limiting, outage,
// protocol error, or a rejection the service maps onto the sentinel taxonomy.
// Full detail stays in logs; clients see a generic upstream failure.
type ProviderError struct {
	Code    ProviderCode
	Op      string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("auth: provider %s failed (%s): %s", e.Op, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderCodeOf extracts the tagged code from err, or CodeUnknown when err
// did not originate at the provider boundary.
func ProviderCodeOf(err error) ProviderCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// AuthError wraps a non-provider failure raised inside an authentication
// flow, such as a token set missing its identity token.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }
