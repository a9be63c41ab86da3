package tui

import "github.com/fentz26/autopilot/internal/history"

type agentLoadedMsg struct{}

type errMsg struct {
	err error
}

// savedMsg reports a successful task mutation.
type savedMsg struct {
	message string
}

// saveFailedMsg reports a rejected mutation. Local state is unchanged.
type saveFailedMsg struct {
	err error
}

type logsLoadedMsg struct {
	taskID string
}

type historyLoadedMsg struct {
	entries []history.Entry
	err     error
}
