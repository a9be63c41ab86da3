package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/autopilot/internal/client"
	"github.com/fentz26/autopilot/internal/confirm"
	"github.com/fentz26/autopilot/internal/tasklist"
)

func newClient() *client.Client {
	return client.New(cfg.APIAddr,
		client.WithAPIKey(cfg.APIKey),
		client.WithTimeout(cfg.Timeout),
	)
}

func newOrchestrator() *tasklist.Orchestrator {
	return tasklist.New(newClient(), cfg.AgentID, tasklist.Options{
		LogLimit:           cfg.LogLimit,
		HistoryLimit:       cfg.HistoryLimit,
		HistoryConcurrency: cfg.HistoryConcurrency,
		Logger:             logger,
	})
}

// loadTasks returns an orchestrator with the configured agent loaded.
func loadTasks(ctx context.Context) (*tasklist.Orchestrator, error) {
	if err := cfg.RequireAgent(); err != nil {
		return nil, err
	}
	o := newOrchestrator()
	if err := o.Load(ctx); err != nil {
		return nil, fmt.Errorf("load agent %s: %w", cfg.AgentID, err)
	}
	return o, nil
}

// confirmed asks on the terminal before running action. assumeYes skips the
// question.
func confirmed(p confirm.Prompt, assumeYes bool, action func() error) error {
	var gate confirm.Gate[error]
	gate.Open(p, action)
	if assumeYes {
		return gate.Confirm()
	}

	shown := gate.Prompt()
	fmt.Printf("%s: %s\n%s? [y/N] ", shown.Title, shown.Message, shown.ConfirmLabel)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return gate.Confirm()
	}
	gate.Cancel()
	fmt.Println("Cancelled.")
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
