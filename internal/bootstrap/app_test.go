package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/ingestions"
	"docflow-backend/internal/shared/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Env:                  "dev",
		ObjectStoreType:      "local",
		LocalStoreDir:        t.TempDir(),
		JWTSecret:            "test-secret",
		JWTTTL:               time.Hour,
		MaxUploadBytes:       1 << 20,
		AdminEmails:          []string{"root@example.com"},
		TriggerRatePerMinute: 60,
	}
	app, err := Build(context.Background(), cfg, WithAdvanceOptions(ingestions.AdvanceOptions{
		Sleep: func(context.Context, time.Duration) error { return nil },
		Rand:  func() float64 { return 0.9 },
	}))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func serve(app *App, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func login(t *testing.T, app *App, email string) string {
	t.Helper()
	creds := map[string]string{"fullName": "Jane Doe", "email": email, "password": "Password@123"}
	if rec := serve(app, jsonRequest(t, http.MethodPost, "/api/v1/auth/signup", creds), ""); rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	rec := serve(app, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", creds), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out.AccessToken
}

func upload(t *testing.T, app *App, token string) string {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("title", "Handbook")
	part, _ := w.CreateFormFile("document", "handbook.pdf")
	_, _ = part.Write([]byte("%PDF-1.4\nemployee handbook"))
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := serve(app, req, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out.ID
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"memory"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "docflow_ingestions_pending") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadTriggerAndComplete(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "jane@example.com")
	docID := upload(t, app, token)

	rec := serve(app, httptest.NewRequest(http.MethodPost, "/api/v1/ingestions/documents/"+docID+"/trigger", nil), token)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger: %d %s", rec.Code, rec.Body.String())
	}
	var triggered struct {
		IngestionID string `json:"ingestionId"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &triggered)
	app.Scheduler.Wait()

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions/"+triggered.IngestionID, nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("details: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Fatalf("expected completed ingestion, got %s", rec.Body.String())
	}

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"editor","canWrite":true,"canAdminister":false`) {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerIsRateLimited(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "jane@example.com")
	docID := upload(t, app, token)

	limited := false
	for i := 0; i < triggerAttempts; i++ {
		rec := serve(app, httptest.NewRequest(http.MethodPost, "/api/v1/ingestions/documents/"+docID+"/trigger", nil), token)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if rec.Header().Get("Retry-After") == "" {
				t.Fatalf("expected Retry-After header")
			}
			break
		}
	}
	app.Scheduler.Wait()
	if !limited {
		t.Fatalf("expected trigger requests to be rate limited")
	}
}

const triggerAttempts = 20

func TestStartResumesNothingOnFreshStore(t *testing.T) {
	app := newTestApp(t)
	app.Config.IngestionResumeOnStart = true
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(app.IngestionsService.Pending()); n != 0 {
		t.Fatalf("expected no pending jobs, got %d", n)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	_, err := Build(context.Background(), config.Config{Env: "production", JWTSecret: "s"})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}
