package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fentz26/autopilot/internal/models"
)

func TestGetAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/agents/a1" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"a1","name":"Bot","autonomous":[{"id":"task-1","name":"n","prompt":"p","cron":"0 * * * *","enabled":true}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("secret"))
	agent, err := c.GetAgent(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if agent.Name != "Bot" || len(agent.Autonomous) != 1 {
		t.Fatalf("Unexpected agent: %+v", agent)
	}
	if c, ok := agent.Autonomous[0].Schedule.Cron(); !ok || c != "0 * * * *" {
		t.Errorf("Unexpected schedule: %v", agent.Autonomous[0].Schedule)
	}
}

func TestUpdateAgent_SendsFullObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Expected PUT, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Fatalf("Invalid request body: %v", err)
		}
		if _, ok := raw["autonomous"]; !ok {
			t.Error("Expected autonomous in body")
		}
		w.Write(body)
	}))
	defer srv.Close()

	c := New(srv.URL)
	in := &models.Agent{ID: "a1", Name: "Bot", Autonomous: []models.Task{{ID: "task-1", Name: "n", Prompt: "p", Schedule: models.EveryMinutes(5)}}}
	out, err := c.UpdateAgent(context.Background(), "a1", in)
	if err != nil {
		t.Fatalf("UpdateAgent failed: %v", err)
	}
	if len(out.Autonomous) != 1 || out.Autonomous[0].ID != "task-1" {
		t.Errorf("Unexpected response agent: %+v", out)
	}
}

func TestGetChatMessages_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/a1/chats/autonomous-task-1/messages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("Expected limit=50, got %q", r.URL.RawQuery)
		}
		http.Error(w, "chat not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetChatMessages(context.Background(), "a1", "autonomous-task-1", 50)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected APIError 404, got %v", err)
	}
}

func TestGetChatMessages_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetChatMessages(context.Background(), "a1", "c", 0)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected non-404 error, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"ok":false,"db":"error: closed"}`))
	}))
	defer srv.Close()

	health, err := New(srv.URL).CheckHealth(context.Background())
	if err == nil {
		t.Fatal("Expected error for 503")
	}
	if health == nil || health.OK || health.DB != "error: closed" {
		t.Errorf("Expected parsed payload alongside error, got %+v", health)
	}
}

func TestGetAuditLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/a1/audit" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("Unexpected request: %s", r.URL)
		}
		w.Write([]byte(`{"data":[{"id":"r1","action":"agent.update","outcome":"rejected","agent_id":"a1"}]}`))
	}))
	defer srv.Close()

	recs, err := New(srv.URL).GetAuditLog(context.Background(), "a1", 5)
	if err != nil {
		t.Fatalf("GetAuditLog failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Outcome != "rejected" {
		t.Errorf("Unexpected records: %+v", recs)
	}
}
