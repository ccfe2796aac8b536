// Package httpapi exposes the authentication flows over HTTP using Gin.
//
// Error taxonomy maps onto status codes here and nowhere else: invalid
// credentials and invalid challenge sessions are 401, an existing account is
// 409, provider outages are 502, everything else is 500. Response bodies for
// failed logins never say which of username or password was wrong.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/audit"
	"github.com/grantlab/auth-go/guard"
	"github.com/grantlab/auth-go/guard/ginmw"
)

// RequestIDHeader carries the caller-supplied request ID; one is generated
// when absent, and either way it is echoed back on the response.
const RequestIDHeader = "X-Request-Id"

// API wires the auth service and guards into a Gin router.
type API struct {
	service *auth.Service
	logger  *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the request-scope logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates the HTTP API over the given service.
func New(service *auth.Service, opts ...Option) *API {
	a := &API{service: service, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Register mounts the auth routes on the router group. The me endpoint sits
// behind the authenticated guard; registration is admin-only.
func (a *API) Register(r gin.IRouter, authenticated, admin *guard.Guard) {
	grp := r.Group("/auth")
	grp.Use(RequestTags())
	grp.POST("/login", a.login)
	grp.POST("/set-password", a.setPassword)
	grp.POST("/register", ginmw.Require(admin), a.register)
	grp.GET("/me", ginmw.Require(authenticated), a.me)
}

// RequestTags tags each request's context with a request ID and the caller's
// IP and user agent, so downstream audit events identify the request.
func RequestTags() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}

		ctx := audit.WithRequestID(c.Request.Context(), id)
		ctx = audit.WithClientInfo(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func (a *API) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := a.service.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "account created"})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := a.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}

	if result.ChallengeRequired() {
		c.JSON(http.StatusOK, gin.H{
			"challenge":          "NEW_PASSWORD_REQUIRED",
			"session":            result.Challenge.Session,
			"username":           result.Challenge.Username,
			"requiredAttributes": result.Challenge.RequiredAttributes,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "login successful",
		"access_token": result.Tokens.AccessToken,
		"id_token":     result.Tokens.IDToken,
		"user": gin.H{
			"email": result.Profile.Email,
			"role":  result.Profile.Role,
			"name":  result.Profile.Name,
		},
	})
}

type setPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
	Session     string `json:"session" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email"`
}

func (a *API) setPassword(c *gin.Context) {
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tokens, err := a.service.SetNewPassword(c.Request.Context(), req.NewPassword, req.Session, req.Username, req.Email)
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "password updated",
		"access_token": tokens.AccessToken,
		"id_token":     tokens.IDToken,
	})
}

func (a *API) me(c *gin.Context) {
	token := bearerToken(c)

	profile, err := a.service.ValidateSession(c.Request.Context(), token)
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email": profile.Email,
		"role":  profile.Role,
		"name":  profile.Name,
	})
}

// fail translates the error taxonomy into a response.
func (a *API) fail(c *gin.Context, err error) {
	var cfgErr *auth.ConfigError
	var provErr *auth.ProviderError

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
	case errors.Is(err, auth.ErrInvalidChallenge):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "challenge session is invalid or expired"})
	case errors.Is(err, auth.ErrSessionInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session is invalid"})
	case errors.Is(err, auth.ErrAccountExists):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
	case errors.As(err, &cfgErr):
		a.logger.Error("configuration error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "service misconfigured"})
	case errors.As(err, &provErr):
		a.logger.Error("identity provider error", "op", provErr.Op, "code", string(provErr.Code))
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider unavailable"})
	default:
		a.logger.Error("authentication error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bearerToken re-extracts the raw token the guard already verified, for the
// provider-side session check.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if cookie, err := c.Cookie(ginmw.SessionCookie); err == nil {
		return cookie
	}
	return ""
}
