package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/cmdgate/internal/audit"
	"github.com/mattjoyce/cmdgate/internal/builtin"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/cooldown"
	"github.com/mattjoyce/cmdgate/internal/dispatch"
	"github.com/mattjoyce/cmdgate/internal/economy"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/i18n"
	"github.com/mattjoyce/cmdgate/internal/log"
	"github.com/mattjoyce/cmdgate/internal/modifier"
	"github.com/mattjoyce/cmdgate/internal/permission"
	"github.com/mattjoyce/cmdgate/internal/plugin"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
	"github.com/mattjoyce/cmdgate/internal/state"
	"github.com/mattjoyce/cmdgate/internal/storage"
	"github.com/mattjoyce/cmdgate/internal/telemetry"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

// app is one wired dispatcher process: storage, services, the scheduler and
// the builtin and plugin command trees.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *sql.DB
	hub         *events.Hub
	sched       *scheduler.Scheduler
	perms       *permission.Service
	messages    *i18n.Bundle
	warmups     *warmup.Service
	registry    *command.Registry
	dispatcher  *dispatch.Dispatcher
	commandLog  *audit.Log
	stopTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:         cfg,
		logger:      log.WithComponent("main"),
		hub:         events.NewHub(256),
		stopTracing: func(context.Context) error { return nil },
	}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	db, err := storage.OpenSQLite(ctx, a.cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	a.logger.Info("database opened", "path", a.cfg.State.Path)

	if a.perms, err = permission.New(a.cfg.Permissions); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	if a.messages, err = i18n.LoadEmbedded(); err != nil {
		return fmt.Errorf("message catalog: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, a.cfg.Telemetry, a.cfg.Service.Name)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.stopTracing = shutdown

	a.sched = scheduler.New(a.cfg.Scheduler, a.hub, log.WithComponent("scheduler"))
	a.warmups = warmup.New(a.cfg.Warmup, a.sched, a.hub, log.WithComponent("warmup"))
	a.commandLog = audit.NewLog(db)

	wallet := economy.NewStore(db, a.cfg.Economy.StartingBalance)
	mods := modifier.NewSet(cooldown.NewStore(db), a.warmups, wallet, a.cfg.Economy.Currency)

	a.registry = command.NewRegistry()
	err = builtin.Register(a.registry, builtin.Deps{
		Wallet:    wallet,
		Warmups:   a.warmups,
		Kits:      builtin.NewKitStore(db),
		Events:    a.hub,
		Currency:  a.cfg.Economy.Currency,
		Modifiers: mods,
		Commands:  a.cfg.Commands,
	})
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	err = registerPlugins(a.registry, a.cfg, plugin.BuildOptions{
		Cooldown: mods.Cooldown,
		Warmup:   mods.Warmup,
		Cost:     mods.Cost,
		State:    state.NewStore(db),
	}, log.WithComponent("plugin"))
	if err != nil {
		return err
	}
	if err := a.registry.Complete(); err != nil {
		return fmt.Errorf("complete registration: %w", err)
	}
	a.logger.Info("command registration complete", "roots", len(a.registry.All()))

	services := &command.Services{
		Permissions:     a.perms,
		Messages:        a.messages,
		Logger:          log.WithComponent("command"),
		ConsoleOverride: a.cfg.Service.ConsoleOverride,
		OptionPrefix:    "cmdgate",
	}
	a.dispatcher = dispatch.New(a.registry, services, a.sched, a.cfg.Dispatch,
		audit.NewInterceptor(a.commandLog, a.hub),
		telemetry.NewInterceptor(nil),
	)
	return nil
}

// start launches the scheduler loops.
func (a *app) start(ctx context.Context) error {
	return a.sched.Start(ctx)
}

// reload re-reads permissions from path. Other settings need a restart.
func (a *app) reload(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := a.perms.Reload(cfg.Permissions); err != nil {
		return err
	}
	a.logger.Info("permissions reloaded", "groups", len(cfg.Permissions.Groups), "subjects", len(cfg.Permissions.Subjects))
	return nil
}

func (a *app) close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.stopTracing(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
