package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/mafia/internal/config"
	"github.com/dkeye/mafia/internal/core"
)

const adminToken = "test-admin-token"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		Mode:                  "release",
		AdminToken:            adminToken,
		TickInterval:          100 * time.Millisecond,
		MaxClientInactiveTime: 5 * time.Minute,
	}
	server := core.NewServer(core.ServerConfig{
		MaxClientInactiveTime: cfg.MaxClientInactiveTime,
	})
	return SetupRouter(context.Background(), cfg, server)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func connect(t *testing.T, r *gin.Engine, name string) string {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/connect", "", gin.H{"name": name})
	if w.Code != http.StatusOK {
		t.Fatalf("connect %s: status %d, body %s", name, w.Code, w.Body)
	}

	var resp struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode connect response: %v", err)
	}
	return resp.SessionToken
}

func TestConnectAndDrainEvents(t *testing.T) {
	r := newTestRouter(t)

	token := connect(t, r, "garnet")

	w := doJSON(t, r, http.MethodGet, "/api/events", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events: status %d, body %s", w.Code, w.Body)
	}

	var resp struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Type != "set_server_info" {
		t.Fatalf("events = %+v, want a single set_server_info", resp.Events)
	}
}

func TestConnectDuplicateNameConflicts(t *testing.T) {
	r := newTestRouter(t)

	connect(t, r, "garnet")
	w := doJSON(t, r, http.MethodPost, "/api/connect", "", gin.H{"name": "garnet"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate connect: status %d, want 409", w.Code)
	}
}

func TestMessageAuth(t *testing.T) {
	r := newTestRouter(t)
	token := connect(t, r, "garnet")

	tests := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{"no token", "", gin.H{"contents": "hi"}, http.StatusUnauthorized},
		{"garbage token", "not-a-uuid", gin.H{"contents": "hi"}, http.StatusUnauthorized},
		{"missing contents", token, gin.H{}, http.StatusBadRequest},
		{"ok", token, gin.H{"contents": "hi"}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/message", tt.token, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d (body %s)", w.Code, tt.status, w.Body)
			}
		})
	}
}

func TestVoteWithoutGameConflicts(t *testing.T) {
	r := newTestRouter(t)
	token := connect(t, r, "garnet")

	w := doJSON(t, r, http.MethodPost, "/api/vote", token, gin.H{"target": nil})
	if w.Code != http.StatusConflict {
		t.Fatalf("vote without game: status %d, want 409", w.Code)
	}
}

func TestAdminEndpointsGated(t *testing.T) {
	r := newTestRouter(t)
	connect(t, r, "garnet")

	w := doJSON(t, r, http.MethodPost, "/api/admin/broadcast", "", gin.H{"contents": "hello"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("broadcast without admin token: status %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/broadcast", bytes.NewBufferString(`{"contents":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("broadcast with admin token: status %d, want 204 (body %s)", rec.Code, rec.Body)
	}
}

func TestStartGameNeedsPlayers(t *testing.T) {
	r := newTestRouter(t)
	connect(t, r, "garnet")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/game/start",
		bytes.NewBufferString(`{"start_cycle":"day","time_for_day_secs":300,"time_for_night_secs":300,"num_mafia":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("start with one player: status %d, want 400 (body %s)", rec.Code, rec.Body)
	}
}
