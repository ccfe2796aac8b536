// Package guard implements access guards over a token verifier.
//
// A guard answers one question: may the caller behind this token proceed?
// Every failure path answers no. Transport bindings live in the ginmw and
// grpcmw subpackages.
package guard

import (
	"context"
	"log/slog"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/audit"
	"github.com/grantlab/auth-go/metrics"
)

// Guard decides whether a bearer token grants access, optionally requiring
// group membership on top of a valid signature.
type Guard struct {
	verifier      auth.TokenVerifier
	requiredGroup string
	name          string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	audit         *audit.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger used for denial events.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// WithMetrics sets the metrics sink for guard decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithAudit sets the audit logger; each denial emits an audit event.
func WithAudit(a *audit.Logger) Option {
	return func(g *Guard) { g.audit = a }
}

// Authenticated returns a guard that admits any caller with a verified,
// unexpired token.
func Authenticated(verifier auth.TokenVerifier, opts ...Option) *Guard {
	return newGuard("authenticated", verifier, "", opts)
}

// Admin returns a guard that additionally requires membership in the admin
// group.
func Admin(verifier auth.TokenVerifier, opts ...Option) *Guard {
	return newGuard("admin", verifier, auth.RoleAdmin, opts)
}

func newGuard(name string, verifier auth.TokenVerifier, group string, opts []Option) *Guard {
	g := &Guard{
		verifier:      verifier,
		requiredGroup: group,
		name:          name,
		logger:        slog.Default(),
		metrics:       metrics.New(false),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Name reports the guard's name for logs and metrics labels.
func (g *Guard) Name() string { return g.name }

// Allow verifies the token and checks the required group, if any.
//
// The claims are returned whenever verification itself succeeded, even when
// the group check denies access, so callers can distinguish an unknown
// caller from a known caller lacking privilege. A nil verifier denies.
func (g *Guard) Allow(ctx context.Context, token string) (*auth.Claims, bool) {
	if g.verifier == nil {
		g.deny(ctx, "", "verifier not configured")
		return nil, false
	}
	if token == "" {
		g.deny(ctx, "", "missing token")
		return nil, false
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.deny(ctx, "", "invalid token", slog.Any("error", err))
		return nil, false
	}

	if g.requiredGroup != "" && !claims.HasGroup(g.requiredGroup) {
		g.deny(ctx, claims.Username, "missing required group",
			slog.String("group", g.requiredGroup))
		return claims, false
	}

	g.metrics.RecordGuardDecision(g.name, true)
	return claims, true
}

func (g *Guard) deny(ctx context.Context, username, reason string, extra ...slog.Attr) {
	g.metrics.RecordGuardDecision(g.name, false)
	attrs := []slog.Attr{
		slog.String("guard", g.name),
		slog.String("reason", reason),
	}
	if username != "" {
		attrs = append(attrs, slog.String("username", username))
	}
	attrs = append(attrs, extra...)
	g.logger.LogAttrs(ctx, slog.LevelWarn, "access denied", attrs...)
	if g.audit != nil {
		g.audit.Log(audit.Event{
			RequestID: audit.RequestID(ctx),
			Username:  username,
			Action:    audit.ActionGuardDeny,
			Result:    "denied",
			Details:   g.name + ": " + reason,
			IP:        audit.ClientIP(ctx),
			UserAgent: audit.UserAgent(ctx),
		})
	}
}
