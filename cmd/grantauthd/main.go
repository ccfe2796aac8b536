// Command grantauthd serves the grant-tracking authentication API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/audit"
	"github.com/grantlab/auth-go/cognito"
	"github.com/grantlab/auth-go/config"
	"github.com/grantlab/auth-go/dynamo"
	"github.com/grantlab/auth-go/guard"
	"github.com/grantlab/auth-go/guard/ginmw"
	"github.com/grantlab/auth-go/httpapi"
	"github.com/grantlab/auth-go/jwks"
	"github.com/grantlab/auth-go/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return err
	}

	m := metrics.New(cfg.MetricsEnabled)

	auditLog := audit.New(256, audit.WithStdoutHandler())
	defer auditLog.Close()

	provider := cognito.New(
		cip.NewFromConfig(awsCfg),
		cfg.UserPoolID, cfg.ClientID, cfg.ClientSecret,
		cognito.WithMetrics(m),
	)
	profiles := dynamo.New(dynamodb.NewFromConfig(awsCfg), cfg.ProfileTable)

	service := auth.NewService(provider, profiles,
		auth.WithLogger(logger),
		auth.WithMetrics(m),
		auth.WithAudit(auditLog),
	)

	verifier := jwks.NewVerifier(cfg.JWKSEndpoint(),
		jwks.WithRefreshInterval(cfg.KeyRefresh),
		jwks.WithMetrics(m),
	)
	guardOpts := []guard.Option{
		guard.WithLogger(logger),
		guard.WithMetrics(m),
		guard.WithAudit(auditLog),
	}
	authenticated := guard.Authenticated(verifier, guardOpts...)
	admin := guard.Admin(verifier, guardOpts...)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", ginmw.Require(admin), gin.WrapH(promhttp.Handler()))
	}

	api := httpapi.New(service, httpapi.WithLogger(logger))
	api.Register(router, authenticated, admin)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
