package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/cmdgate/internal/api"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/lock"
	"github.com/mattjoyce/cmdgate/internal/log"
	"github.com/mattjoyce/cmdgate/internal/tui"
	"github.com/mattjoyce/cmdgate/internal/webhook"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	console := fs.Bool("console", false, "Attach the interactive operator console")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	configPath := resolveConfigPath(*configFlag)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if *console {
		// The console owns the terminal; keep logs off it.
		log.SetupWriter(os.Stderr, "error", cfg.Service.LogFormat)
	} else {
		log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}
	logger := log.WithComponent("main")
	fingerprint, _ := config.Fingerprint(configFile(configPath))
	logger.Info("cmdgate starting", "version", version, "config", configPath, "fingerprint", fingerprint)

	lockPath := lock.ForState(cfg.State.Path)
	pidLock, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer a.close()
	if err := a.start(ctx); err != nil {
		logger.Error("scheduler start failed", "error", err)
		return 1
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := a.reload(configPath); err != nil {
					logger.Error("reload failed, keeping current permissions", "error", err)
				}
			}
		}
	})

	if cfg.API.Enabled {
		srv := api.New(api.ConfigFrom(cfg), api.Deps{
			Dispatcher: a.dispatcher,
			Runner:     a.sched,
			Warmups:    a.warmups,
			Log:        a.commandLog,
			Events:     a.hub,
		}, log.WithComponent("api"))
		g.Go(func() error {
			if err := srv.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	if cfg.Webhooks != nil && len(cfg.Webhooks.Endpoints) > 0 {
		whCfg, err := webhook.FromConfig(cfg.Webhooks, cfg.Service.Locale)
		if err != nil {
			logger.Error("invalid webhook config", "error", err)
			return 1
		}
		hooks := webhook.New(whCfg, a.dispatcher, a.sched, log.WithComponent("webhook"))
		g.Go(func() error {
			if err := hooks.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("webhook: %w", err)
			}
			return nil
		})
		logger.Info("webhook server enabled", "listen", whCfg.Listen, "endpoints", len(whCfg.Endpoints))
	}

	if *console {
		session := tui.NewConsoleSession(a.dispatcher, a.sched, cfg.Service.Locale, logger)
		evs, unsubscribe := a.hub.SubscribeFiltered(events.TypePrefix("command.", "warmup.", "report.", "scheduler."))
		g.Go(func() error {
			defer unsubscribe()
			defer cancel()
			return tui.Run(gctx, session, evs)
		})
	} else {
		logger.Info("cmdgate running (press Ctrl+C to stop)")
	}

	if err := g.Wait(); err != nil {
		logger.Error("component failed", "error", err)
		return 1
	}
	logger.Info("cmdgate stopped")
	return 0
}
