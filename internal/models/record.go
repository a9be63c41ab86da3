package models

import "time"

// DecisionRecord is an audit entry written by the daemon for every agent
// mutation it accepts or rejects.
type DecisionRecord struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	AgentID    string    `json:"agent_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
