package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appLogger "github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

func TestRequestIDAndTraceHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seenRequestID, seenTraceID string
	router := gin.New()
	router.Use(EnrichContext(), RequestID())
	router.GET("/ping", func(c *gin.Context) {
		seenRequestID = appLogger.RequestIDFromContext(c.Request.Context())
		seenTraceID = GetTraceID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if seenRequestID != "req-1" || rr.Header().Get(requestIDHeader) != "req-1" {
		t.Fatalf("expected request id to be propagated, got %q / %q", seenRequestID, rr.Header().Get(requestIDHeader))
	}
	if seenTraceID == "" || rr.Header().Get(TraceIDHeader) != seenTraceID {
		t.Fatalf("expected trace id header %q to match context %q", rr.Header().Get(TraceIDHeader), seenTraceID)
	}
}

func TestRequestIDReplacesMalformedInbound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var fromGin, fromCtx string
	router := gin.New()
	router.Use(RequestID())
	router.DELETE("/api/v1/roles/:name", func(c *gin.Context) {
		fromGin = GetRequestID(c)
		fromCtx = appLogger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusAccepted)
	})

	for _, inbound := range []string{"", "has space", "x\r\ninjected", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/roles/viewer", nil)
		req.Header.Set(requestIDHeader, inbound)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if fromGin == inbound || fromGin == "" {
			t.Fatalf("inbound %q should have been replaced, got %q", inbound, fromGin)
		}
		if fromCtx != fromGin || rr.Header().Get(requestIDHeader) != fromGin {
			t.Fatalf("request id mismatch: ctx %q gin %q header %q", fromCtx, fromGin, rr.Header().Get(requestIDHeader))
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"http://Console.local/"}))
	router.GET("/api/v1/state", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://console.local")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://console.local" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" || rr.Header().Get("Vary") != "Origin" {
		t.Fatalf("listed origin should get credentials and Vary, got %v", rr.Header())
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://evil.local")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 preflight for unknown origin, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://evil.local")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin for unknown origin %q", got)
	}
}

func TestLoggerLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	router := gin.New()
	router.Use(Logger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/ledger", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, path := range []string{"/ok", "/bad", "/ledger"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 access logs, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range entries {
		if entry.Level != want[i] {
			t.Fatalf("entry %d: expected level %v, got %v", i, want[i], entry.Level)
		}
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"*"}))
	router.GET("/api/v1/state", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://anywhere.local")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected response %d %v", rr.Code, rr.Header())
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("credentials must not be allowed with a wildcard origin")
	}
	if rr.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Fatalf("expected exposed headers")
	}
}
