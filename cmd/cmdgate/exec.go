package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/log"
)

// Exit codes for exec.
const (
	exitOK      = 0
	exitFailed  = 1
	exitTimeout = 124
)

func runExec(args []string) int {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	as := fs.String("as", "", "Run as this player instead of the console")
	generic := fs.Bool("generic", false, "Run --as name as a generic actor rather than a player")
	locale := fs.String("locale", "", "Locale for replies (default: service.locale)")
	wait := fs.Duration("wait", 30*time.Second, "How long to wait for a deferred result")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return exitFailed
	}
	line := strings.TrimPrefix(strings.TrimSpace(strings.Join(fs.Args(), " ")), "/")
	if line == "" {
		fmt.Fprintln(os.Stderr, "Usage: cmdgate exec [--as name] [--generic] [--wait 30s] <command line>")
		return exitFailed
	}
	if *generic && *as == "" {
		fmt.Fprintln(os.Stderr, "--generic requires --as")
		return exitFailed
	}

	cfg, err := config.Load(resolveConfigPath(*configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailed
	}
	log.SetupWriter(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat)
	if *locale == "" {
		*locale = cfg.Service.Locale
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return exitFailed
	}
	defer a.close()
	if err := a.start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Scheduler start failed: %v\n", err)
		return exitFailed
	}

	out := &lineWriter{w: os.Stdout}
	var actor *command.Actor
	switch {
	case *as == "":
		actor = command.NewConsole(*locale, out)
	case *generic:
		actor = command.NewGeneric(*as, *locale, out)
	default:
		actor = command.NewPlayer(*as, *locale, nil, out)
	}

	res, err := dispatchAndWait(ctx, a, actor, line, *wait)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dispatch failed: %v\n", err)
		return exitFailed
	}
	switch {
	case res.IsContinue():
		fmt.Fprintf(os.Stderr, "Still pending after %s\n", *wait)
		return exitTimeout
	case res.IsFail():
		return exitFailed
	default:
		return exitOK
	}
}

// dispatchAndWait runs line on the foreground loop and waits up to wait for
// a deferred invocation to resolve. A result that is still Continue after
// the wait is returned as is.
func dispatchAndWait(ctx context.Context, a *app, actor *command.Actor, line string, wait time.Duration) (command.Result, error) {
	label, rest, _ := strings.Cut(line, " ")
	done := make(chan command.Result, 1)

	var res command.Result
	err := a.sched.RunSync(ctx, func(ctx context.Context) {
		res = a.dispatcher.ProcessNotify(ctx, actor, label, rest, func(final command.Result) {
			done <- final
		})
	})
	if err != nil {
		return command.Result{}, err
	}
	if !res.IsContinue() {
		return res, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case final := <-done:
		return final, nil
	case <-timer.C:
		return res, nil
	case <-ctx.Done():
		return res, ctx.Err()
	}
}

// lineWriter is an actor channel that prints each message on its own line.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) Send(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, text)
}
