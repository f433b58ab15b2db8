package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func doRequest(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS_DefaultRejectsCrossOrigin(t *testing.T) {
	router := newTestRouter(CORS())

	w := doRequest(router, "GET", "/ping", map[string]string{"Origin": "https://evil.example"})

	// Request is served, but no CORS headers are granted
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithConfig_AllowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.example.com"}
	router := newTestRouter(CORSWithConfig(cfg))

	w := doRequest(router, "GET", "/ping", map[string]string{"Origin": "https://app.example.com"})

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tenant-ID")
}

func TestCORSWithConfig_DisallowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.example.com"}
	router := newTestRouter(CORSWithConfig(cfg))

	w := doRequest(router, "GET", "/ping", map[string]string{"Origin": "https://other.example.com"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithConfig_Wildcard(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"*"}
	router := newTestRouter(CORSWithConfig(cfg))

	w := doRequest(router, "GET", "/ping", map[string]string{"Origin": "https://anything.example"})

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	// Credentials must not be granted alongside a wildcard origin
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWithConfig_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.example.com"}
	router := newTestRouter(CORSWithConfig(cfg))

	w := doRequest(router, "OPTIONS", "/ping", map[string]string{"Origin": "https://app.example.com"})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSWithConfig_PreflightUnknownOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.example.com"}
	router := newTestRouter(CORSWithConfig(cfg))

	w := doRequest(router, "OPTIONS", "/ping", map[string]string{"Origin": "https://other.example.com"})

	// Preflight still answers 204 so the browser gets a definitive refusal
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID_Generated(t *testing.T) {
	router := newTestRouter(RequestID())

	w := doRequest(router, "GET", "/ping", nil)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_Propagated(t *testing.T) {
	router := newTestRouter(RequestID())

	w := doRequest(router, "GET", "/ping", map[string]string{"X-Request-ID": "req-123"})

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestRequestID_Unique(t *testing.T) {
	router := newTestRouter(RequestID())

	first := doRequest(router, "GET", "/ping", nil).Header().Get("X-Request-ID")
	second := doRequest(router, "GET", "/ping", nil).Header().Get("X-Request-ID")

	assert.NotEqual(t, first, second)
}

// ---------------------------------------------------------------------------
// Security headers
// ---------------------------------------------------------------------------

func TestSecure_Defaults(t *testing.T) {
	router := newTestRouter(Secure())

	w := doRequest(router, "GET", "/ping", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, w.Header().Get("Permissions-Policy"))
	// HSTS requires TLS and is off by default
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecureWithConfig_HSTS(t *testing.T) {
	cfg := DefaultSecurityConfig()
	cfg.HSTSEnabled = true
	cfg.HSTSPreload = true
	router := newTestRouter(SecureWithConfig(cfg))

	w := doRequest(router, "GET", "/ping", nil)

	hsts := w.Header().Get("Strict-Transport-Security")
	assert.Contains(t, hsts, "max-age=31536000")
	assert.Contains(t, hsts, "includeSubDomains")
	assert.Contains(t, hsts, "preload")
}

func TestSecureWithConfig_DisabledDirectives(t *testing.T) {
	cfg := DefaultSecurityConfig()
	cfg.CSPEnabled = false
	cfg.PermissionsPolicyEnabled = false
	router := newTestRouter(SecureWithConfig(cfg))

	w := doRequest(router, "GET", "/ping", nil)

	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Permissions-Policy"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
