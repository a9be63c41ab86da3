package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/autopilot/internal/history"
)

// historyPanel browses the combined execution log of all tasks.
type historyPanel struct {
	entries []history.Entry
	loading bool
	err     error

	search    textinput.Model
	searching bool
	typeIdx   int
	taskIdx   int // 0 is "all tasks"
	grouped   bool

	viewport viewport.Model
}

func newHistoryPanel() *historyPanel {
	search := textinput.New()
	search.Placeholder = "search messages and task names"
	search.CharLimit = 128
	search.Prompt = "/ "

	return &historyPanel{
		search:   search,
		viewport: viewport.New(80, 20),
	}
}

func (h *historyPanel) setSize(w, height int) {
	h.search.Width = w - 6
	h.viewport.Width = w
	h.viewport.Height = max(3, height)
	h.refresh()
}

func (h *historyPanel) setEntries(entries []history.Entry, err error) {
	h.loading = false
	h.entries = entries
	h.err = err
	if h.taskIdx >= len(h.taskKeys())+1 {
		h.taskIdx = 0
	}
	h.refresh()
}

// taskKeys lists every task with history, in first-appearance order.
func (h *historyPanel) taskKeys() []history.GroupCount {
	return history.Apply(h.entries, history.Criteria{}).Counts()
}

func (h *historyPanel) criteria() history.Criteria {
	c := history.Criteria{
		Search: h.search.Value(),
		Type:   history.TypeFilters[h.typeIdx],
	}
	if keys := h.taskKeys(); h.taskIdx > 0 && h.taskIdx <= len(keys) {
		c.TaskID = keys[h.taskIdx-1].TaskID
	}
	return c
}

func (h *historyPanel) update(msg tea.KeyMsg) tea.Cmd {
	if h.searching {
		switch msg.String() {
		case "enter", "esc":
			h.searching = false
			h.search.Blur()
			return nil
		}
		var cmd tea.Cmd
		h.search, cmd = h.search.Update(msg)
		h.refresh()
		return cmd
	}

	switch msg.String() {
	case "/":
		h.searching = true
		return h.search.Focus()
	case "t":
		h.typeIdx = (h.typeIdx + 1) % len(history.TypeFilters)
	case "]":
		h.taskIdx = (h.taskIdx + 1) % (len(h.taskKeys()) + 1)
	case "[":
		n := len(h.taskKeys()) + 1
		h.taskIdx = (h.taskIdx + n - 1) % n
	case "g":
		h.grouped = !h.grouped
	case "x":
		h.search.SetValue("")
		h.typeIdx = 0
		h.taskIdx = 0
	default:
		var cmd tea.Cmd
		h.viewport, cmd = h.viewport.Update(msg)
		return cmd
	}
	h.refresh()
	return nil
}

// refresh recomputes the visible rows from the current criteria.
func (h *historyPanel) refresh() {
	h.viewport.SetContent(h.render())
}

func (h *historyPanel) render() string {
	if h.loading {
		return "\n  Loading history...\n"
	}
	if h.err != nil {
		return "\n  " + errorStyle.Render("Error: "+h.err.Error()) + "\n"
	}
	if len(h.entries) == 0 {
		return "\n  No execution history yet.\n"
	}

	c := h.criteria()
	res := history.Apply(h.entries, c)

	var b strings.Builder
	var counts []string
	for _, gc := range res.Counts() {
		label := gc.TaskName
		if label == "" {
			label = gc.TaskID
		}
		counts = append(counts, fmt.Sprintf("%s (%d)", label, gc.Count))
	}
	if len(counts) > 0 {
		b.WriteString("  " + mutedStyle.Render(strings.Join(counts, " · ")) + "\n\n")
	}

	if len(res.Messages) == 0 {
		b.WriteString("  No messages match the current filters.\n")
		return b.String()
	}

	if !h.grouped {
		for _, e := range res.Messages {
			b.WriteString(renderEntry(e, true) + "\n")
		}
		return b.String()
	}

	for pair := res.Groups.Oldest(); pair != nil; pair = pair.Next() {
		if c.TaskID != "" && pair.Key != c.TaskID {
			continue
		}
		name := pair.Key
		if len(pair.Value) > 0 && pair.Value[0].TaskName != "" {
			name = pair.Value[0].TaskName
		}
		b.WriteString(sectionStyle.Render("  "+name) + "\n")
		for _, e := range pair.Value {
			b.WriteString(renderEntry(e, false) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *historyPanel) header() string {
	keys := h.taskKeys()
	task := "all"
	if h.taskIdx > 0 && h.taskIdx <= len(keys) {
		task = keys[h.taskIdx-1].TaskName
		if task == "" {
			task = keys[h.taskIdx-1].TaskID
		}
	}
	grouped := "off"
	if h.grouped {
		grouped = "on"
	}
	filters := fmt.Sprintf(" Type: [%s]  Task: [%s]  Grouped: [%s]", h.criteria().Type, task, grouped)
	return h.search.View() + "\n" + mutedStyle.Render(filters)
}

func renderEntry(e history.Entry, withTask bool) string {
	m := e.Message
	ts := m.CreatedAt.Local().Format("Jan 02 15:04")
	author := authorStyle(string(m.AuthorType)).Render(fmt.Sprintf("%-7s", m.AuthorType))
	text := strings.ReplaceAll(m.Message, "\n", " ")
	if len([]rune(text)) > 100 {
		text = string([]rune(text)[:100]) + "..."
	}
	line := fmt.Sprintf("  %s  %s  ", mutedStyle.Render(ts), author)
	if withTask {
		name := e.TaskName
		if name == "" {
			name = history.UnknownTask
		}
		line += accentStyle.Render(name) + "  "
	}
	line += text
	if n := len(m.SkillCalls); n > 0 {
		line += mutedStyle.Render(fmt.Sprintf("  [%d skill calls]", n))
	}
	return line
}
