package tui

import (
	"fmt"
	"strings"

	"github.com/fentz26/autopilot/internal/history"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/tasklist"
)

// maxInlineLogs bounds the log lines shown under an expanded task.
const maxInlineLogs = 8

func (a *App) renderTaskList(height int) string {
	if a.loading && !a.tasks.Loaded() {
		return "\n  Loading tasks...\n"
	}
	tasks := a.tasks.Tasks()
	if len(tasks) == 0 {
		return "\n  No autonomous tasks yet. Press a to create one.\n"
	}

	var lines []string
	selectedLine := 0
	for i, task := range tasks {
		if i == a.selectedIdx {
			selectedLine = len(lines)
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s", statusIcon(task), task.Name)))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s", statusLabel(task), task.Name)))
		}

		meta := "      " + task.Schedule.String()
		if task.Description != "" {
			meta += " · " + task.Description
		}
		lines = append(lines, mutedStyle.Render(meta))

		if task.ID == a.expanded {
			lines = append(lines, a.renderTaskLogs(task.ID)...)
		}
	}

	// Limit visible lines
	if len(lines) > height {
		start := selectedLine - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderTaskLogs(taskID string) []string {
	st := a.tasks.LogState(taskID)
	switch st.Status {
	case tasklist.LogIdle, tasklist.LogInFlight:
		return []string{mutedStyle.Render("      Loading logs...")}
	}

	// A failed fetch reads the same as an empty log.
	msgs := a.tasks.Logs(taskID)
	if len(msgs) == 0 {
		return []string{mutedStyle.Render("      No logs yet. This task has not run.")}
	}

	var lines []string
	for i, m := range msgs {
		if i >= maxInlineLogs {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("      … %d more, press h for full history", len(msgs)-maxInlineLogs)))
			break
		}
		lines = append(lines, "  "+renderEntry(history.Entry{Message: m, TaskID: taskID}, false))
	}
	return lines
}

func statusLabel(t models.Task) string {
	if t.Enabled {
		return enabledStyle.Render("● ON ")
	}
	return pausedStyle.Render("○ OFF")
}

func statusIcon(t models.Task) string {
	if t.Enabled {
		return "●"
	}
	return "○"
}
