// Package controlplane provides the HTTP API and service layer of the local
// agent daemon.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fentz26/autopilot/internal/audit"
	"github.com/fentz26/autopilot/internal/models"
	"github.com/fentz26/autopilot/internal/store"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Service provides the control plane business logic.
type Service struct {
	store  *store.Store
	pdr    *audit.PDRWriter
	logger *slog.Logger
}

// NewService creates a new control plane service.
func NewService(s *store.Store, pdr *audit.PDRWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		pdr:    pdr,
		logger: logger,
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Health pings the database.
func (s *Service) Health(ctx context.Context) HealthResponse {
	h := HealthResponse{OK: true, DB: "ok", Version: Version, Time: time.Now().UTC().Format(time.RFC3339)}
	if err := s.store.Ping(ctx); err != nil {
		h.OK = false
		h.DB = "error: " + err.Error()
	}
	return h
}

// --- Agent Operations ---

// CreateAgent creates an agent with an empty task list.
func (s *Service) CreateAgent(name string) (*models.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAgent)
	}
	agent, err := s.store.CreateAgent(name)
	if err != nil {
		return nil, err
	}

	s.pdr.Record("agent.create", map[string]string{"name": name}, audit.OutcomeSuccess, agent.ID, "")
	return agent, nil
}

// GetAgent retrieves an agent by ID.
func (s *Service) GetAgent(id string) (*models.Agent, error) {
	agent, err := s.store.GetAgent(id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	return agent, nil
}

// ListAgents returns every agent.
func (s *Service) ListAgents() ([]models.Agent, error) {
	return s.store.ListAgents()
}

// UpdateAgent replaces an agent after validating its task list.
func (s *Service) UpdateAgent(id string, agent *models.Agent) (*models.Agent, error) {
	if agent.ID != "" && agent.ID != id {
		return nil, fmt.Errorf("%w: body id %q does not match %q", ErrInvalidAgent, agent.ID, id)
	}
	agent.ID = id

	if err := ValidateTasks(agent.Autonomous); err != nil {
		s.pdr.Record("agent.update", agent, audit.OutcomeRejected, id, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidAgent, err)
	}

	stored, err := s.store.ReplaceAgent(agent)
	if errors.Is(err, store.ErrAgentNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		s.pdr.Record("agent.update", agent, audit.OutcomeFailed, id, err.Error())
		return nil, err
	}

	s.pdr.Record("agent.update", agent, audit.OutcomeSuccess, id, fmt.Sprintf("%d tasks", len(stored.Autonomous)))
	s.logger.Info("agent updated", "agent", id, "tasks", len(stored.Autonomous))
	return stored, nil
}

// AuditLog returns recent decision records for an agent.
func (s *Service) AuditLog(agentID string, limit int) ([]models.DecisionRecord, error) {
	if _, err := s.GetAgent(agentID); err != nil {
		return nil, err
	}
	return s.pdr.Recent(agentID, limit)
}

// ValidateTasks checks the rules a stored task list must satisfy.
func ValidateTasks(tasks []models.Task) error {
	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		label := t.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		switch {
		case t.ID == "":
			return fmt.Errorf("task %s: id is required", label)
		case seen[t.ID]:
			return fmt.Errorf("task %s: duplicate id", label)
		case strings.TrimSpace(t.Name) == "":
			return fmt.Errorf("task %s: name is required", label)
		case utf8.RuneCountInString(t.Name) > models.MaxNameLen:
			return fmt.Errorf("task %s: name longer than %d characters", label, models.MaxNameLen)
		case utf8.RuneCountInString(t.Description) > models.MaxDescriptionLen:
			return fmt.Errorf("task %s: description longer than %d characters", label, models.MaxDescriptionLen)
		case strings.TrimSpace(t.Prompt) == "":
			return fmt.Errorf("task %s: prompt is required", label)
		case utf8.RuneCountInString(t.Prompt) > models.MaxPromptLen:
			return fmt.Errorf("task %s: prompt longer than %d characters", label, models.MaxPromptLen)
		}
		seen[t.ID] = true

		if m, ok := t.Schedule.Minutes(); ok && m < models.MinMinutes {
			return fmt.Errorf("task %s: interval must be at least %d minutes", label, models.MinMinutes)
		}
		if c, ok := t.Schedule.Cron(); ok {
			if _, err := models.ParseCron(c); err != nil {
				return fmt.Errorf("task %s: invalid cron %q: %v", label, c, err)
			}
		}
	}
	return nil
}

// --- Chat Operations ---

// ListMessages returns one page of a chat channel.
func (s *Service) ListMessages(agentID, chatID string, limit int, before string) (*models.MessagePage, error) {
	if _, err := s.GetAgent(agentID); err != nil {
		return nil, err
	}
	page, err := s.store.ListMessages(agentID, chatID, limit, before)
	switch {
	case errors.Is(err, store.ErrChatNotFound):
		return nil, ErrChatNotFound
	case errors.Is(err, store.ErrInvalidCursor):
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return page, err
}

// AppendMessage records an execution message in a chat channel.
func (s *Service) AppendMessage(agentID, chatID string, msg models.ExecutionMessage) (*models.ExecutionMessage, error) {
	if _, err := s.GetAgent(agentID); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, fmt.Errorf("%w: chat id is required", ErrBadRequest)
	}
	stored, err := s.store.AppendMessage(agentID, chatID, msg)
	if err != nil {
		return nil, err
	}

	s.pdr.Record("chat.append", map[string]string{"chat_id": chatID, "message_id": stored.ID}, audit.OutcomeSuccess, agentID, "")
	return stored, nil
}
