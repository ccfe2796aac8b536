// Package jwks provides a TokenVerifier implementation using JWKS (JSON Web Key Set).
//
// It fetches RSA public keys from the identity provider's published JWKS
// endpoint (RFC 7517), caches them process-wide, and verifies JWT signatures
// (RS256) without calling the provider per request. The cache is refreshed on
// a TTL; concurrent refreshes are coalesced through singleflight so a burst
// of requests after expiry triggers exactly one fetch.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/metrics"
)

// Verifier implements auth.TokenVerifier using JWKS public keys.
type Verifier struct {
	jwksURL         string
	httpClient      *http.Client
	refreshInterval time.Duration
	missCooldown    time.Duration
	metrics         *metrics.Metrics

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // kid → public key
	lastFetch time.Time

	sf singleflight.Group
}

// compile-time check
var _ auth.TokenVerifier = (*Verifier)(nil)

// Option configures the Verifier.
type Option func(*Verifier)

// WithHTTPClient sets a custom HTTP client for fetching JWKS.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.httpClient = c }
}

// WithRefreshInterval sets how often cached keys are refreshed.
// Default: 1 hour.
func WithRefreshInterval(d time.Duration) Option {
	return func(v *Verifier) { v.refreshInterval = d }
}

// WithMissCooldown sets the minimum interval between fetches triggered by a
// token bearing an unknown kid. Inside the window such tokens are rejected
// without contacting the endpoint, so a stream of garbage kids cannot turn
// into a fetch per request. Default: 30 seconds.
func WithMissCooldown(d time.Duration) Option {
	return func(v *Verifier) { v.missCooldown = d }
}

// WithMetrics sets the metrics sink for cache hit/miss/refresh counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// NewVerifier creates a new JWKS-based token verifier.
func NewVerifier(jwksURL string, opts ...Option) *Verifier {
	v := &Verifier{
		jwksURL:         jwksURL,
		httpClient:      http.DefaultClient,
		refreshInterval: 1 * time.Hour,
		missCooldown:    30 * time.Second,
		metrics:         metrics.New(false),
		keys:            make(map[string]*rsa.PublicKey),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify validates a JWT token string and returns the extracted claims.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*auth.Claims, error) {
	parser := jwt.NewParser(jwt.WithExpirationRequired())

	token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		return v.getKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("auth/jwks: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth/jwks: invalid token claims")
	}

	return mapToClaims(mapClaims), nil
}

// getKey returns the RSA public key for the given kid, fetching/refreshing as needed.
func (v *Verifier) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, found := v.keys[kid]
	if !found && kid == "" {
		for _, k := range v.keys {
			key, found = k, true
			break
		}
	}
	sinceFetch := time.Since(v.lastFetch)
	v.mu.RUnlock()

	if found && sinceFetch <= v.refreshInterval {
		v.metrics.RecordKeyCacheHit()
		return key, nil
	}
	v.metrics.RecordKeyCacheMiss()

	// An unknown kid shortly after a fetch is a bad token, not a rotation.
	// Reject it without touching the endpoint until the cooldown elapses.
	if !found && sinceFetch < v.missCooldown {
		return nil, fmt.Errorf("auth/jwks: key not found for kid %q", kid)
	}

	// Fetch fresh keys (kid mismatch or cache expired). Coalesced: however
	// many requests arrive here together, one of them does the fetch.
	if _, err, _ := v.sf.Do("refresh", func() (interface{}, error) {
		return nil, v.refresh(ctx)
	}); err != nil {
		if found {
			return key, nil // use stale key if refresh fails
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if key, ok := v.keys[kid]; ok {
		return key, nil
	}

	// No kid specified — use the first available key
	if kid == "" {
		for _, k := range v.keys {
			return k, nil
		}
	}

	return nil, fmt.Errorf("auth/jwks: key not found for kid %q", kid)
}

// refresh fetches the JWKS from the configured URL and updates the cache.
func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		v.metrics.RecordKeyRefresh("error")
		return fmt.Errorf("auth/jwks: create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.metrics.RecordKeyRefresh("error")
		return fmt.Errorf("auth/jwks: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		v.metrics.RecordKeyRefresh("error")
		return fmt.Errorf("auth/jwks: fetch returned status %d", resp.StatusCode)
	}

	var jwksResp jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		v.metrics.RecordKeyRefresh("error")
		return fmt.Errorf("auth/jwks: decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwksResp.Keys))
	for _, jwk := range jwksResp.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue // skip malformed keys
		}
		keys[jwk.Kid] = pub
	}

	if len(keys) == 0 {
		v.metrics.RecordKeyRefresh("error")
		return fmt.Errorf("auth/jwks: no valid RSA signing keys found")
	}

	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()

	v.metrics.RecordKeyRefresh("ok")
	return nil
}

// JWKS JSON types

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// mapToClaims converts jwt.MapClaims to auth.Claims. The provider emits its
// group memberships under "cognito:groups" and the login name under
// "username" (access tokens) or "cognito:username" (identity tokens).
func mapToClaims(m jwt.MapClaims) *auth.Claims {
	c := &auth.Claims{
		Extra: make(map[string]any),
	}

	if v, ok := m["sub"].(string); ok {
		c.Subject = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	} else if v, ok := m["cognito:username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["email"].(string); ok {
		c.Email = v
	}
	if v, ok := m["iss"].(string); ok {
		c.Issuer = v
	}
	if v, ok := m["token_use"].(string); ok {
		c.TokenUse = v
	}
	if v, ok := m["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(v), 0)
	}
	if v, ok := m["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(v), 0)
	}
	if groups, ok := m["cognito:groups"].([]interface{}); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				c.Groups = append(c.Groups, s)
			}
		}
	}

	// Non-standard claims go to Extra
	standard := map[string]bool{
		"sub": true, "username": true, "cognito:username": true, "email": true,
		"iss": true, "exp": true, "iat": true, "cognito:groups": true,
		"token_use": true, "aud": true, "nbf": true, "jti": true,
	}
	for k, v := range m {
		if !standard[k] {
			c.Extra[k] = v
		}
	}

	return c
}
