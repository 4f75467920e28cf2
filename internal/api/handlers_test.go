package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"hoomachat/internal/config"
	"hoomachat/internal/ratelimit"
	"hoomachat/internal/report"
	"hoomachat/internal/service/ai"
	"hoomachat/internal/service/chat"
	"hoomachat/internal/session"
	"hoomachat/internal/worker"
)

func newTestServer(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewStore()
	reaper := session.NewReaper(store, cfg.SessionTTL, time.Hour)
	pool := worker.NewPool(1, 4, time.Minute)
	t.Cleanup(pool.Close)
	limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
	gateway := ai.New(cfg, "system prompt")

	chatService := chat.NewService(store, limiter, gateway, pool, reaper)
	reportService := report.NewService(store)

	router := gin.New()
	NewHandler(chatService, reportService, cfg).RegisterRoutes(router)
	return router
}

func testConfig() *config.Config {
	return &config.Config{
		Provider:           config.ProviderOpenAI,
		RateLimitPerMinute: 100,
		SessionTTL:         24 * time.Hour,
		AllowedOrigins:     []string{"*"},
	}
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func assertStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("status = %d, want %d, body: %s", resp.Code, want, resp.Body.String())
	}
}

func decodeJSON(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestChatEndToEnd(t *testing.T) {
	router := newTestServer(t, testConfig())

	// First message without a session id creates one.
	first := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{
		"message": "Hello there",
	}, nil)
	assertStatus(t, first, http.StatusOK)
	var firstBody struct {
		Response  string `json:"response"`
		SessionID string `json:"session_id"`
		Timestamp string `json:"timestamp"`
	}
	decodeJSON(t, first.Body.Bytes(), &firstBody)
	if firstBody.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
	// No credential configured: deterministic degraded reply with 200.
	if firstBody.Response != ai.ReplyUnavailable {
		t.Fatalf("unexpected response %q", firstBody.Response)
	}
	if _, err := time.Parse(time.RFC3339, firstBody.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}

	// Second message reuses the session.
	second := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{
		"message":    "And again",
		"session_id": firstBody.SessionID,
	}, nil)
	assertStatus(t, second, http.StatusOK)
	var secondBody struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, second.Body.Bytes(), &secondBody)
	if secondBody.SessionID != firstBody.SessionID {
		t.Fatalf("session id changed: %s vs %s", secondBody.SessionID, firstBody.SessionID)
	}
}

func TestChatValidation(t *testing.T) {
	router := newTestServer(t, testConfig())

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{"message": ""}, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'a'
	}
	resp = doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{"message": string(long)}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

type failingChatService struct{ err error }

func (f *failingChatService) Handle(_ context.Context, _ string, _ chat.Request) (chat.Response, error) {
	return chat.Response{}, f.err
}

// Unexpected orchestrator failures must not leak their detail into the
// response body.
func TestChatInternalErrorIsOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	svc := &failingChatService{err: errors.New("dial tcp 10.0.0.5:6379: connection refused")}
	router := gin.New()
	NewHandler(svc, report.NewService(session.NewStore()), cfg).RegisterRoutes(router)

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Error != "internal error" {
		t.Fatalf("error body = %q, want generic message", body.Error)
	}
	if strings.Contains(resp.Body.String(), "10.0.0.5") {
		t.Fatalf("response leaked internal detail: %s", resp.Body.String())
	}
}

func TestChatRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	router := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, nil)
		assertStatus(t, resp, http.StatusOK)
	}
	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, nil)
	assertStatus(t, resp, http.StatusTooManyRequests)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestServer(t, testConfig())

	resp := doJSONRequest(t, router, http.MethodGet, "/health", nil, nil)
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/health", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		AIProvider string `json:"ai_provider"`
		Status     string `json:"status"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != "healthy" {
		t.Fatalf("status = %q", body.Status)
	}
	if body.AIProvider != "openai_no_api_key" {
		t.Fatalf("ai_provider = %q", body.AIProvider)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	cfg := testConfig()
	cfg.AdminUsername = "admin"
	cfg.AdminPassword = "secret"
	router := newTestServer(t, cfg)

	resp := doJSONRequest(t, router, http.MethodGet, "/admin/stats", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusOK)
}

func TestAdminDisabledWithoutCredentials(t *testing.T) {
	router := newTestServer(t, testConfig())
	resp := doJSONRequest(t, router, http.MethodGet, "/admin/stats", nil, nil)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestAdminReportingFlow(t *testing.T) {
	cfg := testConfig()
	cfg.AdminUsername = "admin"
	cfg.AdminPassword = "secret"
	router := newTestServer(t, cfg)

	chatResp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]any{
		"message":   "hello",
		"user_info": map[string]any{"url": "https://hooma.io/pricing"},
	}, nil)
	assertStatus(t, chatResp, http.StatusOK)

	auth := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.SetBasicAuth("admin", "secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	stats := auth(http.MethodGet, "/admin/stats")
	assertStatus(t, stats, http.StatusOK)
	var statsBody struct {
		TotalSessions int `json:"total_sessions"`
		TotalMessages int `json:"total_messages"`
	}
	decodeJSON(t, stats.Body.Bytes(), &statsBody)
	if statsBody.TotalSessions != 1 || statsBody.TotalMessages != 2 {
		t.Fatalf("stats = %+v", statsBody)
	}

	convs := auth(http.MethodGet, "/admin/conversations?limit=5")
	assertStatus(t, convs, http.StatusOK)
	var convsBody struct {
		Conversations []struct {
			MessageCount int `json:"message_count"`
		} `json:"conversations"`
	}
	decodeJSON(t, convs.Body.Bytes(), &convsBody)
	if len(convsBody.Conversations) != 1 || convsBody.Conversations[0].MessageCount != 2 {
		t.Fatalf("conversations = %+v", convsBody)
	}

	export := auth(http.MethodGet, "/admin/export")
	assertStatus(t, export, http.StatusOK)
	if cd := export.Header().Get("Content-Disposition"); cd == "" {
		t.Fatalf("export missing attachment header")
	}

	clear := auth(http.MethodPost, "/admin/clear-sessions")
	assertStatus(t, clear, http.StatusNoContent)

	stats = auth(http.MethodGet, "/admin/stats")
	decodeJSON(t, stats.Body.Bytes(), &statsBody)
	if statsBody.TotalSessions != 0 {
		t.Fatalf("clear did not empty sessions: %+v", statsBody)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://hooma.io")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin header")
	}
}
