package tui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/autopilot/internal/client"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/tasklist"
)

type fakeAPI struct {
	mu        sync.Mutex
	agent     *models.Agent
	saved     [][]byte
	updateErr error
	msgs      map[string][]models.ExecutionMessage
}

func (f *fakeAPI) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agent.Clone(), nil
}

func (f *fakeAPI) UpdateAgent(ctx context.Context, id string, a *models.Agent) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	data, _ := json.Marshal(a)
	f.saved = append(f.saved, data)
	f.agent = a.Clone()
	return a.Clone(), nil
}

func (f *fakeAPI) GetChatMessages(ctx context.Context, agentID, chatID string, limit int) (*models.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.msgs[chatID]
	if !ok {
		return nil, &client.APIError{StatusCode: 404}
	}
	return &models.MessagePage{Data: msgs}, nil
}

func newTestApp(t *testing.T) (*App, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{
		agent: &models.Agent{ID: "agent-1", Name: "Bot", Autonomous: []models.Task{
			{ID: "task-1", Name: "Digest", Prompt: "Summarize", Schedule: models.EveryMinutes(60), Enabled: true},
			{ID: "task-2", Name: "Watch", Prompt: "Check", Schedule: models.CronExpr("*/15 * * * *"), Enabled: false},
		}},
		msgs: map[string][]models.ExecutionMessage{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := tasklist.New(api, "agent-1", tasklist.Options{Logger: logger})

	a := New(o, logger, time.Second)
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	run(t, a, a.Init())
	return a, api
}

// run executes cmd synchronously and feeds its message back into the app.
func run(t *testing.T, a *App, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a command")
	}
	msg := cmd()
	a.Update(msg)
	return msg
}

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(a *App, s string) tea.Cmd {
	_, cmd := a.Update(key(s))
	return cmd
}

func TestLoad_ShowsTasks(t *testing.T) {
	a, _ := newTestApp(t)
	view := a.View()
	if !strings.Contains(view, "Digest") || !strings.Contains(view, "Cron: */15 * * * *") {
		t.Errorf("Expected tasks in view:\n%s", view)
	}
}

func TestAddTask_SavesAndCloses(t *testing.T) {
	a, api := newTestApp(t)

	press(a, "a")
	if !a.form.isOpen() {
		t.Fatal("Expected form open")
	}
	press(a, "Daily digest")
	a.form.prompt.SetValue("Summarize")
	a.form.interval.SetValue("60")

	msg := run(t, a, press(a, "ctrl+s"))
	if _, ok := msg.(savedMsg); !ok {
		t.Fatalf("Expected savedMsg, got %T", msg)
	}
	if a.form.isOpen() {
		t.Error("Expected form closed after save")
	}

	var saved struct {
		Autonomous []map[string]any `json:"autonomous"`
	}
	json.Unmarshal(api.saved[len(api.saved)-1], &saved)
	added := saved.Autonomous[2]
	if added["name"] != "Daily digest" || added["minutes"] != float64(60) {
		t.Errorf("Unexpected payload: %v", added)
	}
	if _, ok := added["cron"]; ok {
		t.Error("Expected cron absent")
	}
}

func TestAddTask_InvalidDraftIsNotSent(t *testing.T) {
	a, api := newTestApp(t)

	press(a, "a")
	if cmd := press(a, "ctrl+s"); cmd != nil {
		t.Error("Expected no save command for empty draft")
	}
	if len(a.form.problems) == 0 {
		t.Error("Expected problems listed")
	}
	if len(api.saved) != 0 {
		t.Error("Expected nothing saved")
	}
}

func TestSaveFailure_KeepsFormOpen(t *testing.T) {
	a, api := newTestApp(t)
	api.updateErr = errors.New("backend down")

	press(a, "e")
	a.form.name.SetValue("Digest v2")

	msg := run(t, a, press(a, "ctrl+s"))
	if _, ok := msg.(saveFailedMsg); !ok {
		t.Fatalf("Expected saveFailedMsg, got %T", msg)
	}
	if !a.form.isOpen() {
		t.Error("Expected form to stay open")
	}
	if !a.isError || !strings.Contains(a.message, "backend down") {
		t.Errorf("Expected error message, got %q", a.message)
	}
	if task, _ := a.tasks.Task("task-1"); task.Name != "Digest" {
		t.Errorf("Expected local task unchanged, got %q", task.Name)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	a, api := newTestApp(t)

	press(a, "d")
	if !a.gate.IsOpen() {
		t.Fatal("Expected confirmation prompt")
	}
	press(a, "n")
	if a.gate.IsOpen() || len(api.saved) != 0 {
		t.Fatal("Expected cancel to close prompt without saving")
	}

	press(a, "d")
	run(t, a, press(a, "y"))
	if len(a.tasks.Tasks()) != 1 {
		t.Errorf("Expected 1 task left, got %d", len(a.tasks.Tasks()))
	}
}

func TestToggle_EnableSkipsConfirmation(t *testing.T) {
	a, _ := newTestApp(t)

	press(a, "down")
	cmd := press(a, " ")
	if a.gate.IsOpen() {
		t.Fatal("Expected enabling to skip the prompt")
	}
	run(t, a, cmd)
	if task, _ := a.tasks.Task("task-2"); !task.Enabled {
		t.Error("Expected task-2 enabled")
	}

	// Pausing asks first.
	press(a, " ")
	if !a.gate.IsOpen() {
		t.Error("Expected pause to ask for confirmation")
	}
}

func TestLogs_ExpandShowsEmptyState(t *testing.T) {
	a, _ := newTestApp(t)

	run(t, a, press(a, "enter"))
	if a.expanded != "task-1" {
		t.Fatalf("Expected task-1 expanded, got %q", a.expanded)
	}
	if !strings.Contains(a.View(), "No logs yet") {
		t.Error("Expected empty log message")
	}
}

func TestHistoryPanel(t *testing.T) {
	a, api := newTestApp(t)
	now := time.Now()
	api.msgs["autonomous-task-1"] = []models.ExecutionMessage{
		{ID: "m1", AuthorType: models.AuthorAgent, Message: "digest sent", CreatedAt: now},
		{ID: "m2", AuthorType: models.AuthorTrigger, Message: "scheduled run", CreatedAt: now.Add(-time.Minute)},
	}

	run(t, a, press(a, "h"))
	if a.mode != modeHistory || len(a.history.entries) != 2 {
		t.Fatalf("Expected history with 2 entries, got mode %v and %d entries", a.mode, len(a.history.entries))
	}

	press(a, "t") // trigger
	if out := a.history.render(); !strings.Contains(out, "scheduled run") || strings.Contains(out, "digest sent") {
		t.Errorf("Expected trigger-only rows:\n%s", out)
	}

	press(a, "esc")
	if a.mode != modeList {
		t.Error("Expected esc to return to the list")
	}
}
