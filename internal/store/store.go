// Package store provides SQLite-backed persistence for the local agent API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/autopilot/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrAgentNotFound indicates no agent row has the requested id.
var ErrAgentNotFound = errors.New("agent not found")

// ErrChatNotFound indicates a chat channel has never received a message.
var ErrChatNotFound = errors.New("chat not found")

// ErrInvalidCursor indicates a page cursor that ListMessages did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// Store provides access to the autopilot SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		author_type TEXT NOT NULL,
		data TEXT NOT NULL,
		created_ns INTEGER NOT NULL,
		FOREIGN KEY (agent_id) REFERENCES agents(id)
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		agent_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(agent_id, chat_id, created_ns, id);
	CREATE INDEX IF NOT EXISTS idx_pdr_agent_id ON pdr(agent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Agent Operations ---

// CreateAgent inserts a new agent with no tasks.
func (s *Store) CreateAgent(name string) (*models.Agent, error) {
	now := s.now()
	agent := &models.Agent{
		ID:         uuid.New().String(),
		Name:       name,
		Autonomous: []models.Task{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	data, err := json.Marshal(agent)
	if err != nil {
		return nil, fmt.Errorf("encode agent: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO agents (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		agent.ID, agent.Name, string(data), agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert agent: %w", err)
	}
	return agent, nil
}

// GetAgent retrieves an agent by ID. It returns nil, nil when missing.
func (s *Store) GetAgent(id string) (*models.Agent, error) {
	var data string
	var createdAt, updatedAt time.Time

	err := s.db.QueryRow(
		`SELECT data, created_at, updated_at FROM agents WHERE id = ?`, id,
	).Scan(&data, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}
	return decodeAgent(data, createdAt, updatedAt)
}

// ListAgents returns all agents, newest first.
func (s *Store) ListAgents() ([]models.Agent, error) {
	rows, err := s.db.Query(`SELECT data, created_at, updated_at FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		var data string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agent, err := decodeAgent(data, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// ReplaceAgent overwrites the stored agent with the same id. The creation
// time is kept and the update time is set to now.
func (s *Store) ReplaceAgent(agent *models.Agent) (*models.Agent, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.QueryRow(`SELECT created_at FROM agents WHERE id = ?`, agent.ID).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}

	stored := agent.Clone()
	stored.CreatedAt = createdAt
	stored.UpdatedAt = s.now()
	if stored.Autonomous == nil {
		stored.Autonomous = []models.Task{}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode agent: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE agents SET name = ?, data = ?, updated_at = ? WHERE id = ?`,
		stored.Name, string(data), stored.UpdatedAt, stored.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, nil
}

func decodeAgent(data string, createdAt, updatedAt time.Time) (*models.Agent, error) {
	var agent models.Agent
	if err := json.Unmarshal([]byte(data), &agent); err != nil {
		return nil, fmt.Errorf("decode agent: %w", err)
	}
	agent.CreatedAt = createdAt.UTC()
	agent.UpdatedAt = updatedAt.UTC()
	return &agent, nil
}

// --- Chat Message Operations ---

// AppendMessage stores msg in a chat channel. A missing id or timestamp is
// filled in.
func (s *Store) AppendMessage(agentID, chatID string, msg models.ExecutionMessage) (*models.ExecutionMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if msg.AuthorType == "" {
		msg.AuthorType = models.AuthorOther
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO chat_messages (id, agent_id, chat_id, author_type, data, created_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, agentID, chatID, string(msg.AuthorType), string(data), msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns up to limit messages of a channel, newest first.
// before is the next_cursor of a previous page, or empty for the first page.
// A channel with no messages at all yields ErrChatNotFound.
func (s *Store) ListMessages(agentID, chatID string, limit int, before string) (*models.MessagePage, error) {
	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chat_messages WHERE agent_id = ? AND chat_id = ?`,
		agentID, chatID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if count == 0 {
		return nil, ErrChatNotFound
	}

	cursorNS, cursorID := int64(1<<63-1), ""
	if before != "" {
		var err error
		if cursorNS, cursorID, err = parseCursor(before); err != nil {
			return nil, err
		}
	}

	// Messages can share a timestamp, so the id breaks ties in both the
	// ordering and the cursor.
	rows, err := s.db.Query(
		`SELECT id, data, created_ns FROM chat_messages
		 WHERE agent_id = ? AND chat_id = ?
		   AND (created_ns < ? OR (created_ns = ? AND id < ?))
		 ORDER BY created_ns DESC, id DESC LIMIT ?`,
		agentID, chatID, cursorNS, cursorNS, cursorID, limit+1,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	page := &models.MessagePage{Data: []models.ExecutionMessage{}}
	var lastNS int64
	var lastID string
	for rows.Next() {
		var id, data string
		var ns int64
		if err := rows.Scan(&id, &data, &ns); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(page.Data) == limit {
			page.HasMore = true
			break
		}
		var msg models.ExecutionMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		page.Data = append(page.Data, msg)
		lastNS, lastID = ns, id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if page.HasMore {
		page.NextCursor = formatCursor(lastNS, lastID)
	}
	return page, nil
}

// formatCursor encodes the position of the last message on a page as
// "<created_ns>:<id>".
func formatCursor(ns int64, id string) string {
	return strconv.FormatInt(ns, 10) + ":" + id
}

func parseCursor(cursor string) (int64, string, error) {
	nsPart, id, ok := strings.Cut(cursor, ":")
	if !ok || id == "" {
		return 0, "", fmt.Errorf("%w %q", ErrInvalidCursor, cursor)
	}
	ns, err := strconv.ParseInt(nsPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w %q", ErrInvalidCursor, cursor)
	}
	return ns, id, nil
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(action, inputsHash, outcome, agentID, details string) (*models.DecisionRecord, error) {
	rec := &models.DecisionRecord{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		AgentID:    agentID,
		Details:    details,
		Timestamp:  s.now(),
	}

	_, err := s.db.Exec(
		`INSERT INTO pdr (id, action, inputs_hash, outcome, agent_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Action, rec.InputsHash, rec.Outcome, rec.AgentID, rec.Details, rec.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return rec, nil
}

// ListPDR returns up to limit records for an agent, newest first.
func (s *Store) ListPDR(agentID string, limit int) ([]models.DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, action, inputs_hash, outcome, agent_id, details, timestamp FROM pdr
		 WHERE agent_id = ? ORDER BY timestamp DESC LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	recs := []models.DecisionRecord{}
	for rows.Next() {
		var rec models.DecisionRecord
		var agent, details sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.InputsHash, &rec.Outcome, &agent, &details, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		rec.AgentID = agent.String
		rec.Details = details.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
