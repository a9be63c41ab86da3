// Package taskform holds the add/edit state of an autonomous task.
package taskform

import (
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/autopilot/internal/models"
)

// Mode tells whether the form creates or edits a task.
type Mode int

const (
	ModeAdd Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "add"
}

// ScheduleType selects which schedule variant the draft carries.
type ScheduleType string

const (
	ScheduleMinutes ScheduleType = "minutes"
	ScheduleCron    ScheduleType = "cron"
)

// Draft is the editable copy of a task. Only the field matching the form's
// schedule type is non-zero.
type Draft struct {
	ID          string
	Name        string
	Description string
	Prompt      string
	Minutes     int
	Cron        string
	Enabled     bool
}

// Form is the add/edit controller. The zero value is a closed form.
type Form struct {
	open  bool
	mode  Mode
	draft Draft
	typ   ScheduleType

	// last values entered for the inactive schedule type
	lastMinutes int
	lastCron    string
}

// New returns a closed form.
func New() *Form {
	return &Form{typ: ScheduleMinutes}
}

// OpenAdd resets the draft to defaults.
func (f *Form) OpenAdd() {
	f.open = true
	f.mode = ModeAdd
	f.typ = ScheduleMinutes
	f.draft = Draft{Minutes: models.DefaultMinutes, Enabled: true}
	f.lastMinutes = 0
	f.lastCron = ""
}

// OpenEdit seeds the draft from task. A task with a minutes schedule opens
// in minutes mode; anything else opens in cron mode.
func (f *Form) OpenEdit(task models.Task) {
	f.open = true
	f.mode = ModeEdit
	f.draft = Draft{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		Prompt:      task.Prompt,
		Enabled:     task.Enabled,
	}
	f.lastMinutes = 0
	f.lastCron = ""
	if m, ok := task.Schedule.Minutes(); ok {
		f.typ = ScheduleMinutes
		f.draft.Minutes = m
	} else {
		f.typ = ScheduleCron
		f.draft.Cron, _ = task.Schedule.Cron()
	}
}

// IsOpen reports whether the form is showing.
func (f *Form) IsOpen() bool { return f.open }

// Mode returns the current mode.
func (f *Form) Mode() Mode { return f.mode }

// Draft returns a copy of the current draft.
func (f *Form) Draft() Draft { return f.draft }

// ScheduleType returns the selected schedule variant.
func (f *Form) ScheduleType() ScheduleType { return f.typ }

// SetName sets the name, clamped to models.MaxNameLen runes.
func (f *Form) SetName(s string) { f.draft.Name = clamp(s, models.MaxNameLen) }

// SetDescription sets the description, clamped to models.MaxDescriptionLen runes.
func (f *Form) SetDescription(s string) {
	f.draft.Description = clamp(s, models.MaxDescriptionLen)
}

// SetPrompt sets the prompt, clamped to models.MaxPromptLen runes.
func (f *Form) SetPrompt(s string) { f.draft.Prompt = clamp(s, models.MaxPromptLen) }

// SetEnabled sets the enabled flag.
func (f *Form) SetEnabled(b bool) { f.draft.Enabled = b }

// SetMinutes sets the interval. Ignored unless the minutes type is selected.
func (f *Form) SetMinutes(n int) {
	if f.typ == ScheduleMinutes {
		f.draft.Minutes = n
	}
}

// SetCron sets the cron expression. Ignored unless the cron type is selected.
func (f *Form) SetCron(expr string) {
	if f.typ == ScheduleCron {
		f.draft.Cron = expr
	}
}

// SetScheduleType switches variant. The value of the variant being left is
// cleared from the draft but remembered, so switching back restores it.
func (f *Form) SetScheduleType(t ScheduleType) {
	if t == f.typ {
		return
	}
	switch t {
	case ScheduleMinutes:
		if f.draft.Cron != "" {
			f.lastCron = f.draft.Cron
		}
		f.draft.Cron = ""
		f.draft.Minutes = models.DefaultMinutes
		if f.lastMinutes > 0 {
			f.draft.Minutes = f.lastMinutes
		}
	case ScheduleCron:
		if f.draft.Minutes > 0 {
			f.lastMinutes = f.draft.Minutes
		}
		f.draft.Minutes = 0
		f.draft.Cron = models.DefaultCron
		if f.lastCron != "" {
			f.draft.Cron = f.lastCron
		}
	default:
		return
	}
	f.typ = t
}

// ToggleScheduleType flips between minutes and cron.
func (f *Form) ToggleScheduleType() {
	if f.typ == ScheduleMinutes {
		f.SetScheduleType(ScheduleCron)
	} else {
		f.SetScheduleType(ScheduleMinutes)
	}
}

// Valid reports whether Submit would emit a task.
func (f *Form) Valid() bool {
	return len(f.Problems()) == 0
}

// Problems lists why the draft cannot be submitted.
func (f *Form) Problems() []string {
	var problems []string
	if strings.TrimSpace(f.draft.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(f.draft.Prompt) == "" {
		problems = append(problems, "prompt is required")
	}
	switch f.typ {
	case ScheduleMinutes:
		if f.draft.Minutes < models.MinMinutes {
			problems = append(problems, fmt.Sprintf("interval must be at least %d minutes", models.MinMinutes))
		}
	case ScheduleCron:
		if strings.TrimSpace(f.draft.Cron) == "" {
			problems = append(problems, "cron expression is required")
		}
	}
	return problems
}

// Task builds the task the draft describes, with exactly one schedule
// variant set.
func (f *Form) Task() models.Task {
	t := models.Task{
		ID:          f.draft.ID,
		Name:        f.draft.Name,
		Description: f.draft.Description,
		Prompt:      f.draft.Prompt,
		Enabled:     f.draft.Enabled,
	}
	if f.typ == ScheduleMinutes {
		t.Schedule = models.EveryMinutes(f.draft.Minutes)
	} else {
		t.Schedule = models.CronExpr(f.draft.Cron)
	}
	return t
}

// Submit returns the finished task when the draft is valid. It is a no-op
// on a closed or invalid form. The form stays open; call Close once the
// task has been saved.
func (f *Form) Submit() (models.Task, bool) {
	if !f.open || !f.Valid() {
		return models.Task{}, false
	}
	return f.Task(), true
}

// Close hides the form after a successful save.
func (f *Form) Close() {
	f.open = false
}

// Cancel discards the draft.
func (f *Form) Cancel() {
	f.open = false
	f.draft = Draft{}
	f.lastMinutes = 0
	f.lastCron = ""
}

// Preview returns the next time the drafted schedule would fire. A cron
// expression the parser rejects yields an error here even though the form
// only requires it to be non-empty.
func (f *Form) Preview(now time.Time) (time.Time, error) {
	return f.Task().Schedule.Next(now)
}

func clamp(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
