package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/autopilot/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestAgentCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	agent, err := s.CreateAgent("Research bot")
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if agent.ID == "" {
		t.Error("Agent ID should not be empty")
	}

	got, err := s.GetAgent(agent.ID)
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got == nil || got.Name != "Research bot" {
		t.Fatalf("Unexpected agent: %+v", got)
	}
	if len(got.Autonomous) != 0 {
		t.Errorf("Expected no tasks, got %d", len(got.Autonomous))
	}

	missing, err := s.GetAgent("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing agent, got %v, %v", missing, err)
	}

	agents, err := s.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 1 {
		t.Errorf("Expected 1 agent, got %d", len(agents))
	}
}

func TestReplaceAgent(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	agent, _ := s.CreateAgent("Bot")

	// Agent decoded from a payload carrying a field the model does not know.
	var in models.Agent
	payload := fmt.Sprintf(`{"id":%q,"name":"Renamed","persona":{"tone":"dry"},"autonomous":[{"id":"task-1","name":"n","prompt":"p","minutes":15,"enabled":true}]}`, agent.ID)
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	stored, err := s.ReplaceAgent(&in)
	if err != nil {
		t.Fatalf("ReplaceAgent failed: %v", err)
	}
	if !stored.CreatedAt.Equal(agent.CreatedAt) {
		t.Errorf("Expected created_at kept, got %v want %v", stored.CreatedAt, agent.CreatedAt)
	}

	got, _ := s.GetAgent(agent.ID)
	if got.Name != "Renamed" || len(got.Autonomous) != 1 {
		t.Fatalf("Unexpected stored agent: %+v", got)
	}
	if m, _ := got.Autonomous[0].Schedule.Minutes(); m != 15 {
		t.Errorf("Expected 15 minute schedule, got %v", got.Autonomous[0].Schedule)
	}
	if raw, ok := got.Extra("persona"); !ok || string(raw) != `{"tone":"dry"}` {
		t.Errorf("Expected persona preserved, got %s", raw)
	}

	_, err = s.ReplaceAgent(&models.Agent{ID: "missing"})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Expected ErrAgentNotFound, got %v", err)
	}
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	agent, _ := s.CreateAgent("Bot")
	chat := models.ChannelID("task-1")

	if _, err := s.ListMessages(agent.ID, chat, 10, ""); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("Expected ErrChatNotFound, got %v", err)
	}

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(agent.ID, chat, models.ExecutionMessage{
			AuthorType: models.AuthorAgent,
			Message:    fmt.Sprintf("run %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}
	s.AppendMessage(agent.ID, models.ChannelID("task-2"), models.ExecutionMessage{Message: "other"})

	page, err := s.ListMessages(agent.ID, chat, 3, "")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(page.Data) != 3 || !page.HasMore || page.NextCursor == "" {
		t.Fatalf("Unexpected first page: %+v", page)
	}
	if page.Data[0].Message != "run 4" || page.Data[2].Message != "run 2" {
		t.Errorf("Expected newest first, got %q..%q", page.Data[0].Message, page.Data[2].Message)
	}
	if page.Data[0].ID == "" {
		t.Error("Expected generated message id")
	}

	next, err := s.ListMessages(agent.ID, chat, 3, page.NextCursor)
	if err != nil {
		t.Fatalf("ListMessages page 2 failed: %v", err)
	}
	if len(next.Data) != 2 || next.HasMore {
		t.Errorf("Unexpected second page: %+v", next)
	}
	if next.Data[1].Message != "run 0" {
		t.Errorf("Expected oldest last, got %q", next.Data[1].Message)
	}
}

func TestMessages_EqualTimestampsPageThrough(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	agent, _ := s.CreateAgent("Bot")
	chat := models.ChannelID("task-1")
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(agent.ID, chat, models.ExecutionMessage{
			Message:   fmt.Sprintf("run %d", i),
			CreatedAt: at,
		}); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	seen := map[string]bool{}
	cursor := ""
	for pages := 0; ; pages++ {
		if pages > 3 {
			t.Fatal("Expected paging to stop after 3 pages")
		}
		page, err := s.ListMessages(agent.ID, chat, 1, cursor)
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		for _, m := range page.Data {
			if seen[m.ID] {
				t.Errorf("Message %s returned twice", m.ID)
			}
			seen[m.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 messages across pages, got %d", len(seen))
	}
}

func TestMessages_InvalidCursor(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	agent, _ := s.CreateAgent("Bot")
	chat := models.ChannelID("task-1")
	s.AppendMessage(agent.ID, chat, models.ExecutionMessage{Message: "run"})

	for _, cursor := range []string{"abc", "123", "x:msg-1", "123:"} {
		if _, err := s.ListMessages(agent.ID, chat, 10, cursor); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("Cursor %q: expected ErrInvalidCursor, got %v", cursor, err)
		}
	}
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rec, err := s.WritePDR("agent.update", "abc123", "success", "agent-1", "3 tasks")
	if err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("PDR ID should not be empty")
	}
	s.WritePDR("agent.update", "def456", "rejected", "agent-2", "")

	recs, err := s.ListPDR("agent-1", 10)
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Details != "3 tasks" {
		t.Errorf("Unexpected records: %+v", recs)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
