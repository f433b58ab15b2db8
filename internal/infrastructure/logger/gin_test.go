package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedRouter(level zapcore.Level, mw ...gin.HandlerFunc) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(mw...)
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func requestLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	for _, entry := range recorded.All() {
		if entry.Message == "HTTP Request" {
			return entry
		}
	}
	t.Fatal("no HTTP Request entry logged")
	return observer.LoggedEntry{}
}

func TestGinMiddleware_LogsRequest(t *testing.T) {
	router, recorded := observedRouter(zapcore.InfoLevel)
	router.GET("/jobs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": []string{}})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/jobs", nil)
	req.Header.Set("User-Agent", "sync-cli/1.0")
	router.ServeHTTP(w, req)

	entry := requestLog(t, recorded)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := make(map[string]zapcore.Field)
	for _, f := range entry.Context {
		fields[f.Key] = f
	}
	for _, key := range []string{"status", "latency", "client_ip", "user_agent", "method", "path"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "sync-cli/1.0", fields["user_agent"].String)
}

func TestGinMiddleware_RequestIDPropagates(t *testing.T) {
	setID := func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	}
	router, recorded := observedRouter(zapcore.InfoLevel, setID)
	router.GET("/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/jobs", nil))

	entry := requestLog(t, recorded)
	found := false
	for _, f := range entry.Context {
		if f.Key == "request_id" {
			found = true
			assert.Equal(t, "req-42", f.String)
		}
	}
	assert.True(t, found)
}

func TestGinMiddleware_StatusLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"ok is info", http.StatusOK, zapcore.InfoLevel},
		{"client error is warn", http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{"server error is error", http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, recorded := observedRouter(zapcore.InfoLevel)
			router.GET("/jobs", func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/jobs", nil))

			assert.Equal(t, tt.level, requestLog(t, recorded).Level)
		})
	}
}

func TestGinMiddleware_QueryIncluded(t *testing.T) {
	router, recorded := observedRouter(zapcore.InfoLevel)
	router.GET("/resolve", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest("GET", "/resolve?marketplace=vinted&category_path=women%2Fshoes", nil))

	entry := requestLog(t, recorded)
	found := false
	for _, f := range entry.Context {
		if f.Key == "query" {
			found = true
			assert.Contains(t, f.String, "marketplace=vinted")
		}
	}
	assert.True(t, found)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) {
		panic("adapter blew up")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entries := recorded.All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "Panic recovered", entries[0].Message)
}

func TestGetGinLogger(t *testing.T) {
	router, _ := observedRouter(zapcore.InfoLevel)

	var got *zap.Logger
	router.GET("/jobs", func(c *gin.Context) {
		got = GetGinLogger(c)
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/jobs", nil))

	assert.NotNil(t, got)
}

func TestGetGinLogger_MiddlewareMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	var got *zap.Logger
	router.GET("/jobs", func(c *gin.Context) {
		got = GetGinLogger(c)
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/jobs", nil))

	require.NotNil(t, got)
	assert.NotPanics(t, func() { got.Info("noop") })
}
