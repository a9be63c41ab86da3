// Package tasklist keeps an agent's autonomous tasks in memory and persists
// every change by saving the whole agent.
package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fentz26/autopilot/internal/client"
	"github.com/fentz26/autopilot/internal/history"
	"github.com/fentz26/autopilot/internal/models"
	"golang.org/x/sync/errgroup"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultLogLimit           = 50
	DefaultHistoryLimit       = 100
	DefaultHistoryConcurrency = 4
)

var (
	// ErrNotLoaded is returned by mutations before Load succeeded.
	ErrNotLoaded = errors.New("agent not loaded")
	// ErrTaskNotFound is returned when no task has the given id.
	ErrTaskNotFound = errors.New("task not found")
)

// AgentAPI is the backend the orchestrator persists through.
type AgentAPI interface {
	GetAgent(ctx context.Context, agentID string) (*models.Agent, error)
	UpdateAgent(ctx context.Context, agentID string, agent *models.Agent) (*models.Agent, error)
	GetChatMessages(ctx context.Context, agentID, chatID string, limit int) (*models.MessagePage, error)
}

// Options tunes an Orchestrator.
type Options struct {
	LogLimit           int
	HistoryLimit       int
	HistoryConcurrency int
	Logger             *slog.Logger
	Now                func() time.Time
}

// Orchestrator owns the loaded agent and per-task log state.
type Orchestrator struct {
	api     AgentAPI
	agentID string
	opts    Options

	// saveMu serializes read-modify-write cycles against the backend.
	saveMu sync.Mutex

	mu    sync.Mutex
	agent *models.Agent
	logs  map[string]LogState
}

// New creates an orchestrator for agentID.
func New(api AgentAPI, agentID string, opts Options) *Orchestrator {
	if opts.LogLimit <= 0 {
		opts.LogLimit = DefaultLogLimit
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.HistoryConcurrency <= 0 {
		opts.HistoryConcurrency = DefaultHistoryConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		api:     api,
		agentID: agentID,
		opts:    opts,
		logs:    make(map[string]LogState),
	}
}

// AgentID returns the agent this orchestrator manages.
func (o *Orchestrator) AgentID() string { return o.agentID }

// Load fetches the agent and replaces the in-memory copy.
func (o *Orchestrator) Load(ctx context.Context) error {
	agent, err := o.api.GetAgent(ctx, o.agentID)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	o.mu.Lock()
	o.agent = agent
	o.mu.Unlock()
	return nil
}

// Loaded reports whether an agent is in memory.
func (o *Orchestrator) Loaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agent != nil
}

// Agent returns a copy of the loaded agent, or nil.
func (o *Orchestrator) Agent() *models.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.agent == nil {
		return nil
	}
	return o.agent.Clone()
}

// Tasks returns a copy of the task collection in stored order.
func (o *Orchestrator) Tasks() []models.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.agent == nil {
		return nil
	}
	return append([]models.Task(nil), o.agent.Autonomous...)
}

// Task looks up one task by id.
func (o *Orchestrator) Task(id string) (models.Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.agent == nil {
		return models.Task{}, false
	}
	if i := o.agent.FindTask(id); i >= 0 {
		return o.agent.Autonomous[i], true
	}
	return models.Task{}, false
}

// Add assigns task a fresh id, appends it and saves. The stored task is
// returned.
func (o *Orchestrator) Add(ctx context.Context, task models.Task) (models.Task, error) {
	err := o.save(ctx, func(a *models.Agent) error {
		task.ID = o.newTaskID(a)
		a.Autonomous = append(a.Autonomous, task)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Edit replaces the task with the same id and saves.
func (o *Orchestrator) Edit(ctx context.Context, task models.Task) error {
	return o.save(ctx, func(a *models.Agent) error {
		i := a.FindTask(task.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, task.ID)
		}
		a.Autonomous[i] = task.KeepUnknown(a.Autonomous[i])
		return nil
	})
}

// Delete removes the task and saves. Its log state is dropped.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	err := o.save(ctx, func(a *models.Agent) error {
		i := a.FindTask(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		a.Autonomous = append(a.Autonomous[:i], a.Autonomous[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	o.mu.Lock()
	delete(o.logs, id)
	o.mu.Unlock()
	return nil
}

// Toggle flips the enabled flag of one task and saves.
func (o *Orchestrator) Toggle(ctx context.Context, id string) (models.Task, error) {
	var toggled models.Task
	err := o.save(ctx, func(a *models.Agent) error {
		i := a.FindTask(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		a.Autonomous[i].Enabled = !a.Autonomous[i].Enabled
		toggled = a.Autonomous[i]
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return toggled, nil
}

// ReplaceAll swaps the whole collection and saves.
func (o *Orchestrator) ReplaceAll(ctx context.Context, tasks []models.Task) error {
	return o.save(ctx, func(a *models.Agent) error {
		a.Autonomous = append([]models.Task(nil), tasks...)
		for i := range a.Autonomous {
			if a.Autonomous[i].ID == "" {
				a.Autonomous[i].ID = o.newTaskID(a)
			}
		}
		return nil
	})
}

// save applies mutate to a copy of the agent and persists it. The in-memory
// agent is replaced only after the backend accepted the copy.
func (o *Orchestrator) save(ctx context.Context, mutate func(*models.Agent) error) error {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()

	o.mu.Lock()
	if o.agent == nil {
		o.mu.Unlock()
		return ErrNotLoaded
	}
	next := o.agent.Clone()
	o.mu.Unlock()

	if err := mutate(next); err != nil {
		return err
	}

	updated, err := o.api.UpdateAgent(ctx, o.agentID, next)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}

	fresh, err := o.api.GetAgent(ctx, o.agentID)
	if err != nil {
		o.opts.Logger.Warn("refresh after save failed, using save response",
			"agent", o.agentID, "error", err)
		fresh = updated
	}
	if fresh == nil {
		fresh = next
	}

	o.mu.Lock()
	o.agent = fresh
	o.mu.Unlock()
	return nil
}

// newTaskID returns task-<unix millis>, bumped until unique within a.
func (o *Orchestrator) newTaskID(a *models.Agent) string {
	ms := o.opts.Now().UnixMilli()
	for {
		id := "task-" + strconv.FormatInt(ms, 10)
		if a.FindTask(id) < 0 {
			return id
		}
		ms++
	}
}

// LogStatus is the request state of one task's log.
type LogStatus int

const (
	LogIdle LogStatus = iota
	LogInFlight
	LogLoaded
	LogFailed
)

func (s LogStatus) String() string {
	switch s {
	case LogInFlight:
		return "loading"
	case LogLoaded:
		return "loaded"
	case LogFailed:
		return "failed"
	default:
		return "idle"
	}
}

// LogState is the log of one task and how it got there.
type LogState struct {
	Status   LogStatus
	Messages []models.ExecutionMessage
	Err      error
}

// LogState returns the current state for taskID. Unknown ids are idle.
func (o *Orchestrator) LogState(taskID string) LogState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.logs[taskID]
}

// Logs returns the loaded messages for taskID. Anything but a loaded state
// reads as no logs.
func (o *Orchestrator) Logs(taskID string) []models.ExecutionMessage {
	st := o.LogState(taskID)
	if st.Status != LogLoaded {
		return nil
	}
	return st.Messages
}

// FetchLogs loads the log for taskID unless it is already loading or
// loaded. The returned bool reports whether a request was made.
func (o *Orchestrator) FetchLogs(ctx context.Context, taskID string) (LogState, bool) {
	o.mu.Lock()
	cur := o.logs[taskID]
	if cur.Status == LogInFlight || cur.Status == LogLoaded {
		o.mu.Unlock()
		return cur, false
	}
	o.logs[taskID] = LogState{Status: LogInFlight}
	o.mu.Unlock()

	msgs, err := o.fetchMessages(ctx, taskID, o.opts.LogLimit)

	st := LogState{Status: LogLoaded, Messages: msgs}
	if err != nil {
		o.opts.Logger.Warn("fetch task logs failed", "task", taskID, "error", err)
		st = LogState{Status: LogFailed, Err: err}
	}

	o.mu.Lock()
	// A concurrent Delete may have dropped the key; do not resurrect it.
	if _, ok := o.logs[taskID]; ok {
		o.logs[taskID] = st
	}
	o.mu.Unlock()
	return st, true
}

// ReloadLogs discards the current state for taskID and fetches again. An
// in-flight request is left alone.
func (o *Orchestrator) ReloadLogs(ctx context.Context, taskID string) (LogState, bool) {
	o.mu.Lock()
	if o.logs[taskID].Status == LogLoaded {
		o.logs[taskID] = LogState{}
	}
	o.mu.Unlock()
	return o.FetchLogs(ctx, taskID)
}

// fetchMessages treats a missing channel as an empty log.
func (o *Orchestrator) fetchMessages(ctx context.Context, taskID string, limit int) ([]models.ExecutionMessage, error) {
	page, err := o.api.GetChatMessages(ctx, o.agentID, models.ChannelID(taskID), limit)
	if errors.Is(err, client.ErrNotFound) {
		return []models.ExecutionMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	if page == nil || page.Data == nil {
		return []models.ExecutionMessage{}, nil
	}
	return page.Data, nil
}

// LoadAllHistory fetches the log of every task concurrently and returns the
// combined entries newest first. A task whose fetch fails is logged and
// skipped.
func (o *Orchestrator) LoadAllHistory(ctx context.Context) ([]history.Entry, error) {
	tasks := o.Tasks()
	if !o.Loaded() {
		return nil, ErrNotLoaded
	}

	results := make([][]history.Entry, len(tasks))
	var g errgroup.Group
	g.SetLimit(o.opts.HistoryConcurrency)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			msgs, err := o.fetchMessages(ctx, task.ID, o.opts.HistoryLimit)
			if err != nil {
				o.opts.Logger.Warn("skip task history", "task", task.ID, "error", err)
				return nil
			}
			entries := make([]history.Entry, len(msgs))
			for j, m := range msgs {
				entries[j] = history.Entry{Message: m, TaskID: task.ID, TaskName: task.Name}
			}
			results[i] = entries
			return nil
		})
	}
	g.Wait()

	var all []history.Entry
	for _, r := range results {
		all = append(all, r...)
	}
	return history.SortNewestFirst(all), nil
}
