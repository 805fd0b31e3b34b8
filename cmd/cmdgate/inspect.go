package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/inspect"
	"github.com/mattjoyce/cmdgate/internal/log"
)

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	kindFlag := fs.String("kind", "player", "Actor kind: player, generic or console")
	jsonOut := fs.Bool("json", false, "Output the report as JSON")
	limit := fs.Int("limit", 10, "Number of recent invocations to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	kind, ok := command.ParseKind(*kindFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown actor kind: %s\n", *kindFlag)
		return 1
	}
	if kind != command.KindConsole && fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cmdgate inspect [--kind player|generic|console] [--json] <actor>")
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(*configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.SetupWriter(os.Stderr, "error", cfg.Service.LogFormat)

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	defer a.close()

	var actor *command.Actor
	switch kind {
	case command.KindConsole:
		actor = command.NewConsole(cfg.Service.Locale, nil)
	case command.KindPlayer:
		actor = command.NewPlayer(fs.Arg(0), cfg.Service.Locale, nil, nil)
	default:
		actor = command.NewGeneric(fs.Arg(0), cfg.Service.Locale, nil)
	}

	windows := make(map[string]time.Duration)
	a.registry.Walk(func(n *command.Node, _ int) {
		if d := n.Metadata().Defaults.Cooldown; d > 0 {
			windows[n.Key()] = d
		}
	})
	in := inspect.New(a.db, inspect.Options{
		StartingBalance: cfg.Economy.StartingBalance,
		Currency:        cfg.Economy.Currency,
		Windows:         windows,
		Recent:          *limit,
	})

	var out string
	if *jsonOut {
		out, err = in.BuildJSONReport(ctx, actor)
	} else {
		out, err = in.BuildReport(ctx, actor)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(out)
	if *jsonOut {
		fmt.Println()
	}
	return 0
}
