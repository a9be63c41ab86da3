package models

import (
	"encoding/json"
	"time"
)

// Agent owns the list of autonomous tasks. Tasks are created, updated and
// deleted only by rewriting Autonomous and saving the whole agent.
//
// Fields the client does not model are kept in extra and written back
// unchanged, since saving an agent replaces it on the backend.
type Agent struct {
	ID         string
	Name       string
	Autonomous []Task
	CreatedAt  time.Time
	UpdatedAt  time.Time

	extra map[string]json.RawMessage
}

var agentKnownKeys = []string{"id", "name", "autonomous", "created_at", "updated_at"}

// MarshalJSON implements json.Marshaler.
func (a Agent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.extra)+len(agentKnownKeys))
	for k, v := range a.extra {
		out[k] = v
	}
	out["id"] = a.ID
	out["name"] = a.Name
	tasks := a.Autonomous
	if tasks == nil {
		tasks = []Task{}
	}
	out["autonomous"] = tasks
	if !a.CreatedAt.IsZero() {
		out["created_at"] = a.CreatedAt
	}
	if !a.UpdatedAt.IsZero() {
		out["updated_at"] = a.UpdatedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Agent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var decoded Agent
	fields := map[string]any{
		"id":         &decoded.ID,
		"name":       &decoded.Name,
		"autonomous": &decoded.Autonomous,
		"created_at": &decoded.CreatedAt,
		"updated_at": &decoded.UpdatedAt,
	}
	for key, dst := range fields {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return err
		}
		delete(raw, key)
	}
	for _, key := range agentKnownKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		decoded.extra = raw
	}
	*a = decoded
	return nil
}

// Extra returns the raw value of a field the client does not model.
func (a *Agent) Extra(key string) (json.RawMessage, bool) {
	v, ok := a.extra[key]
	return v, ok
}

// Clone returns a deep copy safe to mutate.
func (a *Agent) Clone() *Agent {
	c := *a
	if a.Autonomous != nil {
		c.Autonomous = append([]Task(nil), a.Autonomous...)
	}
	if a.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(a.extra))
		for k, v := range a.extra {
			c.extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// FindTask returns the index of the task with id, or -1.
func (a *Agent) FindTask(id string) int {
	for i, t := range a.Autonomous {
		if t.ID == id {
			return i
		}
	}
	return -1
}
