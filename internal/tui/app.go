// Package tui provides the interactive terminal UI for managing autonomous
// tasks.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/autopilot/internal/confirm"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/tasklist"
)

type mode int

const (
	modeList mode = iota
	modeHistory
)

// App is the main TUI application model.
type App struct {
	tasks   *tasklist.Orchestrator
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	form    *formModel
	gate    confirm.Gate[tea.Cmd]
	history *historyPanel

	mode        mode
	selectedIdx int
	expanded    string
	width       int
	height      int
	loading     bool
	saving      bool
	message     string
	isError     bool
}

// New creates a new TUI application around a task orchestrator.
func New(tasks *tasklist.Orchestrator, logger *slog.Logger, timeout time.Duration) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &App{
		tasks:   tasks,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
		form:    newFormModel(),
		history: newHistoryPanel(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return a.load()
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.gate.IsOpen() {
			return a, a.updateConfirm(msg)
		}
		if a.form.isOpen() {
			return a, a.updateForm(msg)
		}
		if a.mode == modeHistory {
			return a, a.updateHistory(msg)
		}
		return a, a.updateList(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.form.setWidth(min(msg.Width-4, 80))
		a.history.setSize(msg.Width, msg.Height-8)

	case agentLoadedMsg:
		a.loading = false
		a.clampSelection()

	case savedMsg:
		a.saving = false
		a.form.close()
		a.setMessage(msg.message, false)
		a.clampSelection()

	case saveFailedMsg:
		a.saving = false
		a.logger.Error("save failed", "error", msg.err)
		a.setMessage("Error: "+msg.err.Error(), true)

	case logsLoadedMsg:
		// State lives in the orchestrator; re-render only.

	case historyLoadedMsg:
		if msg.err != nil {
			a.logger.Error("load history failed", "error", msg.err)
		}
		a.history.setEntries(msg.entries, msg.err)

	case errMsg:
		a.loading = false
		a.logger.Error("request failed", "error", msg.err)
		a.setMessage("Error: "+msg.err.Error(), true)
	}
	return a, nil
}

func (a *App) setMessage(text string, isError bool) {
	a.message = text
	a.isError = isError
}

func (a *App) clampSelection() {
	n := len(a.tasks.Tasks())
	if a.selectedIdx >= n {
		a.selectedIdx = max(0, n-1)
	}
}

func (a *App) selectedTask() (models.Task, bool) {
	tasks := a.tasks.Tasks()
	if a.selectedIdx < 0 || a.selectedIdx >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[a.selectedIdx], true
}

func (a *App) updateList(msg tea.KeyMsg) tea.Cmd {
	n := len(a.tasks.Tasks())

	switch msg.String() {
	case "q":
		return tea.Quit
	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
	case "down", "j":
		if a.selectedIdx < n-1 {
			a.selectedIdx++
		}
	case "r":
		return a.load()
	case "a":
		a.message = ""
		return a.form.openAdd()
	case "e":
		if task, ok := a.selectedTask(); ok {
			a.message = ""
			return a.form.openEdit(task)
		}
	case "d":
		if task, ok := a.selectedTask(); ok {
			a.gate.Open(confirm.Prompt{
				Title:        "Delete task",
				Message:      fmt.Sprintf("Delete %q? Its schedule stops immediately.", task.Name),
				ConfirmLabel: "Delete",
				Severity:     confirm.SeverityDanger,
			}, func() tea.Cmd { return a.deleteTask(task) })
		}
	case " ", "t":
		if task, ok := a.selectedTask(); ok {
			if !task.Enabled {
				return a.toggleTask(task)
			}
			a.gate.Open(confirm.Prompt{
				Title:        "Pause task",
				Message:      fmt.Sprintf("Pause %q? It will not run until enabled again.", task.Name),
				ConfirmLabel: "Pause",
				Severity:     confirm.SeverityWarning,
			}, func() tea.Cmd { return a.toggleTask(task) })
		}
	case "enter", "l":
		if task, ok := a.selectedTask(); ok {
			if a.expanded == task.ID {
				a.expanded = ""
				return nil
			}
			a.expanded = task.ID
			return a.fetchLogs(task.ID, false)
		}
	case "L":
		if a.expanded != "" {
			return a.fetchLogs(a.expanded, true)
		}
	case "h":
		a.mode = modeHistory
		return a.loadHistory()
	}
	return nil
}

func (a *App) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.form.cancel()
		return nil
	case "ctrl+s":
		if a.saving {
			return nil
		}
		task, ok := a.form.submit()
		if !ok {
			return nil
		}
		a.saving = true
		if task.ID == "" {
			return a.addTask(task)
		}
		return a.editTask(task)
	}
	return a.form.update(msg)
}

func (a *App) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		return a.gate.Confirm()
	case "n", "esc", "q":
		a.gate.Cancel()
	}
	return nil
}

func (a *App) updateHistory(msg tea.KeyMsg) tea.Cmd {
	if !a.history.searching {
		switch msg.String() {
		case "esc", "q":
			a.mode = modeList
			return nil
		case "r":
			return a.loadHistory()
		}
	}
	return a.history.update(msg)
}

// --- Commands ---

func (a *App) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *App) load() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.tasks.Load(ctx); err != nil {
			return errMsg{err}
		}
		return agentLoadedMsg{}
	}
}

func (a *App) addTask(task models.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		stored, err := a.tasks.Add(ctx, task)
		if err != nil {
			return saveFailedMsg{err}
		}
		return savedMsg{fmt.Sprintf("✓ Created %q", stored.Name)}
	}
}

func (a *App) editTask(task models.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.tasks.Edit(ctx, task); err != nil {
			return saveFailedMsg{err}
		}
		return savedMsg{fmt.Sprintf("✓ Updated %q", task.Name)}
	}
}

func (a *App) deleteTask(task models.Task) tea.Cmd {
	a.saving = true
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.tasks.Delete(ctx, task.ID); err != nil {
			return saveFailedMsg{err}
		}
		return savedMsg{fmt.Sprintf("✓ Deleted %q", task.Name)}
	}
}

func (a *App) toggleTask(task models.Task) tea.Cmd {
	a.saving = true
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		toggled, err := a.tasks.Toggle(ctx, task.ID)
		if err != nil {
			return saveFailedMsg{err}
		}
		state := "paused"
		if toggled.Enabled {
			state = "enabled"
		}
		return savedMsg{fmt.Sprintf("✓ %q %s", toggled.Name, state)}
	}
}

func (a *App) fetchLogs(taskID string, reload bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		if reload {
			a.tasks.ReloadLogs(ctx, taskID)
		} else {
			a.tasks.FetchLogs(ctx, taskID)
		}
		return logsLoadedMsg{taskID}
	}
}

func (a *App) loadHistory() tea.Cmd {
	a.history.loading = true
	a.history.refresh()
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		entries, err := a.tasks.LoadAllHistory(ctx)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

// --- View ---

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("AUTOPILOT")
	if agent := a.tasks.Agent(); agent != nil {
		header += "  " + accentStyle.Render(agent.Name)
		header += "  " + mutedStyle.Render(fmt.Sprintf("[%d tasks]", len(agent.Autonomous)))
	} else {
		header += "  " + mutedStyle.Render(a.tasks.AgentID())
	}
	if a.saving {
		header += "  " + pausedStyle.Render("saving...")
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	contentHeight := a.height - 6
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch {
	case a.gate.IsOpen():
		b.WriteString(a.renderConfirm())
	case a.form.isOpen():
		b.WriteString(a.form.view(a.now()))
	case a.mode == modeHistory:
		b.WriteString(a.history.header() + "\n")
		b.WriteString(a.history.viewport.View())
	default:
		b.WriteString(a.renderTaskList(contentHeight))
	}

	// Message bar
	b.WriteString("\n")
	if a.message != "" {
		style := okStyle
		if a.isError {
			style = errorStyle
		}
		b.WriteString(style.Render(a.message))
	}
	b.WriteString("\n")

	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(a.statusLine()))
	return b.String()
}

func (a *App) statusLine() string {
	switch {
	case a.gate.IsOpen():
		return " y:confirm | n:cancel"
	case a.form.isOpen():
		return " Tab:next | Space:toggle | Ctrl+S:save | Esc:cancel"
	case a.mode == modeHistory:
		if a.history.searching {
			return " Enter:done | Esc:done"
		}
		return " /:search | t:type | [ ]:task | g:group | x:clear | r:reload | Esc:back"
	default:
		return fmt.Sprintf(" Tasks: %d | ↑↓:nav | a:add | e:edit | d:delete | space:toggle | enter:logs | h:history | r:refresh | q:quit", len(a.tasks.Tasks()))
	}
}

func (a *App) renderConfirm() string {
	p := a.gate.Prompt()
	color := severityColor(p.Severity)

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(color).Render(p.Title) + "\n\n")
	if p.Message != "" {
		b.WriteString(p.Message + "\n\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(color).Render("[y] "+p.ConfirmLabel) + "   " + mutedStyle.Render("[n] "+p.CancelLabel))

	return modalStyle.Copy().BorderForeground(color).Render(b.String())
}
