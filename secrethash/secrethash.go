// Package secrethash computes the per-request authentication code the
// identity provider requires on every credential-bearing call.
//
// The provider computes the same value independently; any divergence in
// algorithm or field ordering makes it reject the call with an opaque
// "not authorized" error that is indistinguishable from a bad password.
// Every provider call that needs the hash goes through Compute — it is the
// single source of truth for the computation.
package secrethash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	auth "github.com/grantlab/auth-go"
)

// Compute returns Base64(HMAC-SHA256(clientSecret, username || clientID)).
// Pure and deterministic: identical inputs always produce the identical hash.
// It fails with a ConfigError rather than proceed with a wrong hash when a
// provider-assigned value is absent.
func Compute(username, clientID, clientSecret string) (string, error) {
	if clientID == "" {
		return "", &auth.ConfigError{Missing: "identity provider client id"}
	}
	if clientSecret == "" {
		return "", &auth.ConfigError{Missing: "identity provider client secret"}
	}

	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username))
	mac.Write([]byte(clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
