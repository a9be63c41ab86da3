package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/taskform"
)

type formField int

const (
	fieldName formField = iota
	fieldDescription
	fieldPrompt
	fieldSchedule
	fieldInterval
	fieldEnabled
	fieldCount
)

// formModel renders a taskform.Form as a modal with bubbles inputs.
type formModel struct {
	ctrl *taskform.Form

	name        textinput.Model
	description textinput.Model
	interval    textinput.Model
	prompt      textarea.Model

	focus    formField
	problems []string
	width    int
}

func newFormModel() *formModel {
	name := textinput.New()
	name.Placeholder = "Daily digest"
	name.CharLimit = models.MaxNameLen

	desc := textinput.New()
	desc.Placeholder = "optional"
	desc.CharLimit = models.MaxDescriptionLen

	interval := textinput.New()
	interval.CharLimit = 64

	prompt := textarea.New()
	prompt.Placeholder = "What should the agent do each run?"
	prompt.CharLimit = models.MaxPromptLen
	prompt.ShowLineNumbers = false
	prompt.SetHeight(5)

	f := &formModel{
		ctrl:        taskform.New(),
		name:        name,
		description: desc,
		interval:    interval,
		prompt:      prompt,
	}
	f.setWidth(60)
	return f
}

func (f *formModel) setWidth(w int) {
	if w < 30 {
		w = 30
	}
	f.width = w
	inner := w - 16
	f.name.Width = inner
	f.description.Width = inner
	f.interval.Width = inner
	f.prompt.SetWidth(inner)
}

func (f *formModel) isOpen() bool { return f.ctrl.IsOpen() }

func (f *formModel) openAdd() tea.Cmd {
	f.ctrl.OpenAdd()
	return f.reset()
}

func (f *formModel) openEdit(task models.Task) tea.Cmd {
	f.ctrl.OpenEdit(task)
	return f.reset()
}

func (f *formModel) close() {
	f.ctrl.Close()
	f.blurAll()
}

func (f *formModel) cancel() {
	f.ctrl.Cancel()
	f.blurAll()
}

// reset copies the controller's draft into the inputs.
func (f *formModel) reset() tea.Cmd {
	d := f.ctrl.Draft()
	f.name.SetValue(d.Name)
	f.description.SetValue(d.Description)
	f.prompt.SetValue(d.Prompt)
	f.loadInterval()
	f.problems = nil
	return f.setFocus(fieldName)
}

func (f *formModel) loadInterval() {
	d := f.ctrl.Draft()
	if f.ctrl.ScheduleType() == taskform.ScheduleMinutes {
		f.interval.Placeholder = "minutes, at least 5"
		f.interval.SetValue(strconv.Itoa(d.Minutes))
	} else {
		f.interval.Placeholder = models.DefaultCron
		f.interval.SetValue(d.Cron)
	}
}

func (f *formModel) blurAll() {
	f.name.Blur()
	f.description.Blur()
	f.interval.Blur()
	f.prompt.Blur()
}

func (f *formModel) setFocus(field formField) tea.Cmd {
	f.blurAll()
	f.focus = field
	switch field {
	case fieldName:
		return f.name.Focus()
	case fieldDescription:
		return f.description.Focus()
	case fieldInterval:
		return f.interval.Focus()
	case fieldPrompt:
		return f.prompt.Focus()
	}
	return nil
}

// sync pushes input values into the controller.
func (f *formModel) sync() {
	f.ctrl.SetName(f.name.Value())
	f.ctrl.SetDescription(f.description.Value())
	f.ctrl.SetPrompt(f.prompt.Value())
	if f.ctrl.ScheduleType() == taskform.ScheduleMinutes {
		n, err := strconv.Atoi(strings.TrimSpace(f.interval.Value()))
		if err != nil {
			n = 0
		}
		f.ctrl.SetMinutes(n)
	} else {
		f.ctrl.SetCron(f.interval.Value())
	}
}

// submit returns the task to save, or false with problems recorded.
func (f *formModel) submit() (models.Task, bool) {
	f.sync()
	task, ok := f.ctrl.Submit()
	if !ok {
		f.problems = f.ctrl.Problems()
		return models.Task{}, false
	}
	f.problems = nil
	return task, true
}

// update handles a key while the form is open.
func (f *formModel) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		return f.setFocus((f.focus + 1) % fieldCount)
	case "shift+tab":
		return f.setFocus((f.focus + fieldCount - 1) % fieldCount)
	case "enter":
		if f.focus != fieldPrompt {
			return f.setFocus((f.focus + 1) % fieldCount)
		}
	}

	switch f.focus {
	case fieldSchedule:
		switch msg.String() {
		case " ", "left", "right", "h", "l":
			f.sync()
			f.ctrl.ToggleScheduleType()
			f.loadInterval()
		}
		return nil
	case fieldEnabled:
		switch msg.String() {
		case " ", "left", "right", "h", "l":
			f.ctrl.SetEnabled(!f.ctrl.Draft().Enabled)
		}
		return nil
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldName:
		f.name, cmd = f.name.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldInterval:
		f.interval, cmd = f.interval.Update(msg)
	case fieldPrompt:
		f.prompt, cmd = f.prompt.Update(msg)
	}
	f.sync()
	return cmd
}

func (f *formModel) label(field formField, text string) string {
	if f.focus == field {
		return focusedLabelStyle.Render(text)
	}
	return labelStyle.Render(text)
}

func (f *formModel) view(now time.Time) string {
	var b strings.Builder

	title := "New autonomous task"
	if f.ctrl.Mode() == taskform.ModeEdit {
		title = "Edit autonomous task"
	}
	b.WriteString(sectionStyle.Render(title) + "\n\n")

	b.WriteString(f.label(fieldName, "Name") + f.name.View() + "\n")
	b.WriteString(f.label(fieldDescription, "Description") + f.description.View() + "\n")
	b.WriteString(f.label(fieldPrompt, "Prompt") + "\n" + f.prompt.View() + "\n")

	minutes, cron := "( ) minutes", "( ) cron"
	if f.ctrl.ScheduleType() == taskform.ScheduleMinutes {
		minutes = "(•) minutes"
	} else {
		cron = "(•) cron"
	}
	b.WriteString(f.label(fieldSchedule, "Schedule") + minutes + "  " + cron + "\n")

	intervalLabel := "Every"
	if f.ctrl.ScheduleType() == taskform.ScheduleCron {
		intervalLabel = "Cron"
	}
	b.WriteString(f.label(fieldInterval, intervalLabel) + f.interval.View() + "\n")

	enabled := pausedStyle.Render("[ ] paused")
	if f.ctrl.Draft().Enabled {
		enabled = enabledStyle.Render("[x] enabled")
	}
	b.WriteString(f.label(fieldEnabled, "Status") + enabled + "\n\n")

	if next, err := f.ctrl.Preview(now); err == nil {
		b.WriteString(mutedStyle.Render("Next run: "+next.Local().Format("Mon Jan 2 15:04")) + "\n")
	}
	for _, p := range f.problems {
		b.WriteString(errorStyle.Render("• "+p) + "\n")
	}

	submit := "ctrl+s save"
	if !f.ctrl.Valid() {
		submit = mutedStyle.Render("ctrl+s save (incomplete)")
	}
	b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("tab next field • space toggle • %s • esc cancel", submit)))

	return modalStyle.Width(f.width).Render(b.String())
}
