package ginmw_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/fake"
	"github.com/grantlab/auth-go/guard"
	"github.com/grantlab/auth-go/guard/ginmw"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(g *guard.Guard) *gin.Engine {
	r := gin.New()
	r.GET("/protected", ginmw.Require(g), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username": ginmw.GetUsername(c),
			"email":    ginmw.GetEmail(c),
		})
	})
	return r
}

func testVerifier(t *testing.T) *fake.Verifier {
	t.Helper()
	v := fake.NewVerifier()
	v.AddToken("member-token", &auth.Claims{
		Username:  "bob",
		Email:     "bob@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	v.AddToken("admin-token", &auth.Claims{
		Username:  "alice",
		Email:     "alice@example.com",
		Groups:    []string{auth.RoleAdmin},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return v
}

func TestRequire_BearerHeader(t *testing.T) {
	r := newRouter(guard.Authenticated(testVerifier(t)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer member-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !strings.Contains(body, `"username":"bob"`) {
		t.Errorf("body = %s", body)
	}
}

func TestRequire_SessionCookie(t *testing.T) {
	r := newRouter(guard.Authenticated(testVerifier(t)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: ginmw.SessionCookie, Value: "member-token"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequire_MissingToken(t *testing.T) {
	r := newRouter(guard.Authenticated(testVerifier(t)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequire_InvalidToken(t *testing.T) {
	r := newRouter(guard.Authenticated(testVerifier(t)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequire_MalformedHeader(t *testing.T) {
	r := newRouter(guard.Authenticated(testVerifier(t)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token member-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequire_AdminGuard(t *testing.T) {
	r := newRouter(guard.Admin(testVerifier(t)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer member-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member status = %d, want 403", w.Code)
	}
}
