// Package container wires the local daemon's services.
package container

import (
	"fmt"
	"log/slog"

	"go.uber.org/dig"

	"github.com/fentz26/autopilot/internal/audit"
	"github.com/fentz26/autopilot/internal/config"
	"github.com/fentz26/autopilot/internal/controlplane"
	"github.com/fentz26/autopilot/internal/store"
)

// Daemon holds the resolved daemon singletons.
type Daemon struct {
	store  *store.Store
	server *controlplane.Server
}

func (d *Daemon) Store() *store.Store          { return d.store }
func (d *Daemon) Server() *controlplane.Server { return d.server }

// Close releases the database.
func (d *Daemon) Close() error { return d.store.Close() }

// NewDaemon builds the store, audit writer, service and HTTP server from cfg.
func NewDaemon(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	d := dig.New()

	ctors := []any{
		func() *config.Config { return cfg },
		func() *slog.Logger { return logger },
		newStore,
		audit.NewPDRWriter,
		controlplane.NewService,
		newServer,
	}
	for _, ctor := range ctors {
		if err := d.Provide(ctor); err != nil {
			return nil, fmt.Errorf("provide: %w", err)
		}
	}

	var result *Daemon
	err := d.Invoke(func(st *store.Store, srv *controlplane.Server) {
		result = &Daemon{store: st, server: srv}
	})
	if err != nil {
		return nil, fmt.Errorf("build daemon: %w", err)
	}
	return result, nil
}

func newStore(cfg *config.Config) (*store.Store, error) {
	return store.New(cfg.DBPath)
}

func newServer(cfg *config.Config, svc *controlplane.Service, logger *slog.Logger) *controlplane.Server {
	return controlplane.NewServer(svc, cfg.Listen, cfg.APIKey, logger)
}
