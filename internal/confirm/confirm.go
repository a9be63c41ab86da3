// Package confirm provides a yes/no gate placed in front of destructive
// actions.
package confirm

// Severity only affects how the prompt is rendered.
type Severity string

const (
	SeverityDanger  Severity = "danger"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Prompt is the text shown by a gate.
type Prompt struct {
	Title        string
	Message      string
	ConfirmLabel string
	CancelLabel  string
	Severity     Severity
}

func (p Prompt) withDefaults() Prompt {
	if p.ConfirmLabel == "" {
		p.ConfirmLabel = "Confirm"
	}
	if p.CancelLabel == "" {
		p.CancelLabel = "Cancel"
	}
	if p.Severity == "" {
		p.Severity = SeverityInfo
	}
	return p
}

// Gate holds one pending action. R is whatever the action produces, e.g. a
// tea.Cmd in the TUI.
type Gate[R any] struct {
	open      bool
	prompt    Prompt
	onConfirm func() R
}

// Open shows prompt and arms onConfirm. Opening an open gate replaces the
// pending action.
func (g *Gate[R]) Open(p Prompt, onConfirm func() R) {
	g.open = true
	g.prompt = p.withDefaults()
	g.onConfirm = onConfirm
}

// IsOpen reports whether a prompt is showing.
func (g *Gate[R]) IsOpen() bool { return g.open }

// Prompt returns the prompt being shown.
func (g *Gate[R]) Prompt() Prompt { return g.prompt }

// Confirm runs the pending action and closes the gate. It returns the zero
// value when the gate is closed.
func (g *Gate[R]) Confirm() R {
	var zero R
	if !g.open {
		return zero
	}
	fn := g.onConfirm
	g.close()
	if fn == nil {
		return zero
	}
	return fn()
}

// Cancel closes the gate without running the action.
func (g *Gate[R]) Cancel() {
	g.close()
}

func (g *Gate[R]) close() {
	g.open = false
	g.onConfirm = nil
}
