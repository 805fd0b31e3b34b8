package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/log"
)

func runCommands(cliArgs []string) int {
	fs := flag.NewFlagSet("commands", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(cliArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(*configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.SetupWriter(os.Stderr, "error", cfg.Service.LogFormat)

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	defer a.close()

	printTree(os.Stdout, a.registry)
	return 0
}

// printTree writes one line per node: usage, then aliases, permissions and
// flags in brackets.
func printTree(w io.Writer, reg *command.Registry) {
	reg.Walk(func(n *command.Node, depth int) {
		meta := n.Metadata()
		usage := strings.TrimSpace("/" + n.Path() + " " + args.Usage(meta.Parameters))

		var notes []string
		if len(meta.Aliases) > 1 {
			notes = append(notes, "aliases: "+strings.Join(meta.Aliases[1:], ", "))
		}
		if len(meta.Permissions) > 0 {
			notes = append(notes, "perm: "+strings.Join(meta.Permissions, ", "))
		}
		if meta.Source != command.SourceAny {
			notes = append(notes, meta.Source.String()+" only")
		}
		if meta.Async {
			notes = append(notes, "async")
		}
		if !n.HasExecutor() {
			notes = append(notes, "group")
		}

		line := strings.Repeat("  ", depth) + usage
		if len(notes) > 0 {
			line += "  [" + strings.Join(notes, "; ") + "]"
		}
		fmt.Fprintln(w, line)
	})
}
