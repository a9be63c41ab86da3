// Package models defines the core domain types for autopilot.
package models

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// Field limits enforced by the task form.
const (
	MaxNameLen        = 50
	MaxDescriptionLen = 200
	MaxPromptLen      = 20000
)

// ChannelPrefix prefixes the chat channel that holds a task's execution log.
const ChannelPrefix = "autonomous-"

// ChannelID returns the log channel for a task.
func ChannelID(taskID string) string {
	return ChannelPrefix + taskID
}

// Task is one autonomous task: a prompt the backend runs on a schedule.
type Task struct {
	ID          string
	Name        string
	Description string
	Prompt      string
	Schedule    Schedule
	Enabled     bool

	// src is the object the task was decoded from. Copies share it; it is
	// never mutated.
	src *taskSource
}

// taskSource keeps what the backend sent so a save writes back fields the
// client does not model, and an unmodified task byte for byte.
type taskSource struct {
	fields taskFields
	raw    json.RawMessage // nil when decoding normalized the object
	extra  map[string]json.RawMessage
}

type taskFields struct {
	ID          string
	Name        string
	Description string
	Prompt      string
	Schedule    Schedule
	Enabled     bool
}

var taskKnownKeys = []string{"id", "name", "description", "prompt", "minutes", "cron", "enabled"}

func (t Task) fields() taskFields {
	return taskFields{t.ID, t.Name, t.Description, t.Prompt, t.Schedule, t.Enabled}
}

// KeepUnknown returns t carrying the unmodelled fields of prev. Edits use it
// so replacing a task does not drop what the backend stored with it.
func (t Task) KeepUnknown(prev Task) Task {
	if prev.src != nil {
		t.src = prev.src
	}
	return t
}

// Extra returns the raw value of a field the client does not model.
func (t Task) Extra(key string) (json.RawMessage, bool) {
	if t.src == nil {
		return nil, false
	}
	v, ok := t.src.extra[key]
	return v, ok
}

// taskWire is the JSON/YAML shape of a Task. Exactly one of Minutes and
// Cron is emitted.
type taskWire struct {
	ID          string  `json:"id" yaml:"id,omitempty"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Prompt      string  `json:"prompt" yaml:"prompt"`
	Minutes     *int    `json:"minutes,omitempty" yaml:"minutes,omitempty"`
	Cron        *string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Enabled     bool    `json:"enabled" yaml:"enabled"`
}

func (t Task) toWire() taskWire {
	w := taskWire{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Prompt:      t.Prompt,
		Enabled:     t.Enabled,
	}
	if m, ok := t.Schedule.Minutes(); ok {
		w.Minutes = &m
	}
	if c, ok := t.Schedule.Cron(); ok {
		w.Cron = &c
	}
	return w
}

// toTask normalizes a decoded task. A present minutes key wins over a cron
// key, whatever its value, so bad intervals reach validation. ScheduleNone
// means neither key was present.
func (w taskWire) toTask() Task {
	t := Task{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Prompt:      w.Prompt,
		Enabled:     w.Enabled,
	}
	switch {
	case w.Minutes != nil:
		t.Schedule = EveryMinutes(*w.Minutes)
	case w.Cron != nil:
		t.Schedule = CronExpr(*w.Cron)
	}
	return t
}

// MarshalJSON implements json.Marshaler.
func (t Task) MarshalJSON() ([]byte, error) {
	if t.src != nil && t.src.raw != nil && t.src.fields == t.fields() {
		return t.src.raw, nil
	}
	known, err := json.Marshal(t.toWire())
	if err != nil || t.src == nil || len(t.src.extra) == 0 {
		return known, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(known, &out); err != nil {
		return nil, err
	}
	for k, v := range t.src.extra {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := w.toTask()
	for _, key := range taskKnownKeys {
		delete(raw, key)
	}
	src := &taskSource{fields: decoded.fields()}
	if len(raw) > 0 {
		src.extra = raw
	}
	// Both schedule keys means cron was dropped; write back the normalized form.
	if w.Minutes == nil || w.Cron == nil {
		src.raw = append(json.RawMessage(nil), data...)
	}
	decoded.src = src
	*t = decoded
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Task) MarshalYAML() (interface{}, error) {
	return t.toWire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Task) UnmarshalYAML(value *yaml.Node) error {
	var w taskWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	*t = w.toTask()
	return nil
}

// AuthorType classifies an execution message.
type AuthorType string

const (
	AuthorTrigger AuthorType = "trigger"
	AuthorAgent   AuthorType = "agent"
	AuthorSkill   AuthorType = "skill"
	AuthorSystem  AuthorType = "system"
	AuthorOther   AuthorType = "other"
)

// SkillCall is one tool invocation made while executing a task.
type SkillCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Response   string         `json:"response,omitempty"`
	Success    bool           `json:"success"`
	CreditCost float64        `json:"credit_cost,omitempty"`
}

// ExecutionMessage is one backend-owned record of a task execution.
type ExecutionMessage struct {
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	AuthorType   AuthorType  `json:"author_type"`
	Message      string      `json:"message"`
	SkillCalls   []SkillCall `json:"skill_calls,omitempty"`
	InputTokens  int         `json:"input_tokens"`
	OutputTokens int         `json:"output_tokens"`
	CreditCost   float64     `json:"credit_cost"`
	TimeCost     float64     `json:"time_cost"`
}

// MessagePage is one page of a chat channel listing.
type MessagePage struct {
	Data       []ExecutionMessage `json:"data"`
	HasMore    bool               `json:"has_more"`
	NextCursor string             `json:"next_cursor,omitempty"`
}
