// Package grpcmw binds access guards to gRPC server interceptors.
//
// Claims of an admitted caller are stored on the request context via the
// auth context helpers.
package grpcmw

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/guard"
)

// Option configures interceptor behavior.
type Option func(*config)

type config struct {
	excludedMethods map[string]bool
}

// WithExcludedMethods sets fully qualified gRPC methods that skip the guard
// (e.g. "/grpc.health.v1.Health/Check").
func WithExcludedMethods(methods ...string) Option {
	return func(cfg *config) {
		for _, m := range methods {
			cfg.excludedMethods[m] = true
		}
	}
}

// UnaryAuth returns a unary server interceptor enforcing the guard.
func UnaryAuth(g *guard.Guard, opts ...Option) grpc.UnaryServerInterceptor {
	cfg := &config{excludedMethods: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if cfg.excludedMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		ctx, err := admit(ctx, g)
		if err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// StreamAuth returns a stream server interceptor enforcing the guard.
func StreamAuth(g *guard.Guard, opts ...Option) grpc.StreamServerInterceptor {
	cfg := &config{excludedMethods: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if cfg.excludedMethods[info.FullMethod] {
			return handler(srv, ss)
		}

		ctx, err := admit(ss.Context(), g)
		if err != nil {
			return err
		}

		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

func admit(ctx context.Context, g *guard.Guard) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	token := extractBearerFromMD(md)
	claims, allowed := g.Allow(ctx, token)
	if !allowed {
		if claims == nil {
			return ctx, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, status.Error(codes.PermissionDenied, "insufficient privileges")
	}

	ctx = auth.WithClaims(ctx, claims)
	ctx = auth.WithUsername(ctx, claims.Username)
	ctx = auth.WithEmail(ctx, claims.Email)
	ctx = auth.WithGroups(ctx, claims.Groups)

	return ctx, nil
}

func extractBearerFromMD(md metadata.MD) string {
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	parts := strings.SplitN(vals[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// wrappedStream wraps grpc.ServerStream to override Context().
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
