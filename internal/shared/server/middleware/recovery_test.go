package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docflow-backend/internal/shared/telemetry"
)

func TestRecoveryLogsTaggedResources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)
	prev := telemetry.Logger()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.POST(triggerPath, func(c *gin.Context) {
		c.Set(DocumentIDKey, "doc-7")
		panic("scheduler exploded")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingestions/documents/doc-7/trigger", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code != "internal" {
		t.Fatalf("expected internal envelope, got %+v (%v)", body, err)
	}

	entries := logs.FilterMessage("request.panic").All()
	if len(entries) != 1 {
		t.Fatalf("expected one panic log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["document_id"] != "doc-7" || fields["route"] != triggerPath {
		t.Fatalf("unexpected fields: %#v", fields)
	}
	if !strings.Contains(fields["panic"].(string), "scheduler exploded") {
		t.Fatalf("expected panic value logged, got %v", fields["panic"])
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/api/v1/me", func(c *gin.Context) {
		c.String(http.StatusOK, telemetry.RequestIDFromContext(c.Request.Context()))
	})

	for _, incoming := range []string{"", "has space", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if incoming != "" {
			req.Header.Set(requestIDHeader, incoming)
		}
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		got := resp.Header().Get(requestIDHeader)
		if got == "" || got == incoming {
			t.Fatalf("expected minted id for %q, got %q", incoming, got)
		}
		if resp.Body.String() != got {
			t.Fatalf("request context id %q differs from header %q", resp.Body.String(), got)
		}
	}
}
