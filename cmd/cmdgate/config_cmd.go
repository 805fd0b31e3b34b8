package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/cmdgate/internal/builtin"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/doctor"
	"github.com/mattjoyce/cmdgate/internal/i18n"
	"github.com/mattjoyce/cmdgate/internal/log"
	"github.com/mattjoyce/cmdgate/internal/modifier"
	"github.com/mattjoyce/cmdgate/internal/permission"
	"github.com/mattjoyce/cmdgate/internal/plugin"
)

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "get":
		return runConfigGet(actionArgs)
	case "set":
		return runConfigSet(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		printConfigHelp(os.Stderr)
		return 1
	}
}

func printConfigHelp(w *os.File) {
	fmt.Fprint(w, `Usage: cmdgate config <action> [--config path]

Actions:
  check               Cross-check configuration against commands, permissions and catalogs
  get <path>          Print a value, e.g. api.listen or command:kit.create.cost
  set <path> <value>  Change a value in the config file; rolled back if invalid
`)
}

// configFile resolves a config path that may name a directory.
func configFile(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, "config.yaml")
	}
	return path
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	format := fs.String("format", "human", "Output format: human or json")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	path := configFile(resolveConfigPath(*configFlag))

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL %v\n", err)
		return 1
	}
	if _, err := permission.New(cfg.Permissions); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL permissions: %v\n", err)
		return 1
	}
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL message catalog: %v\n", err)
		return 1
	}

	// Registration only builds the tree; no store is touched.
	reg := command.NewRegistry()
	if err := builtin.Register(reg, builtin.Deps{Currency: cfg.Economy.Currency, Commands: cfg.Commands}); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL commands: %v\n", err)
		return 1
	}
	err = registerPlugins(reg, cfg, plugin.BuildOptions{
		Cooldown: modifier.NewCooldown(nil),
		Warmup:   modifier.NewWarmup(nil),
		Cost:     modifier.NewCost(nil, cfg.Economy.Currency),
	}, log.New(os.Stderr, "warn", "text"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL plugins: %v\n", err)
		return 1
	}
	if err := reg.Complete(); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL commands: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, reg, bundle).Validate()
	switch *format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	case "human":
		fmt.Print(doctor.FormatHuman(result))
		if result.Valid {
			fingerprint, err := config.Fingerprint(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "FAIL fingerprint: %v\n", err)
				return 1
			}
			fmt.Printf("OK %s (fingerprint %s)\n", path, fingerprint)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", *format)
		return 1
	}

	if !result.Valid || (*strict && len(result.Warnings) > 0) {
		return 1
	}
	return 0
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cmdgate config get <path>")
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(*configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	val, err := cfg.GetPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	out, err := yaml.Marshal(val)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(string(out))
	return 0
}

func runConfigSet(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	var key, value string
	switch fs.NArg() {
	case 1:
		// Also accept key=value.
		var ok bool
		if key, value, ok = strings.Cut(fs.Arg(0), "="); !ok {
			fmt.Fprintln(os.Stderr, "Usage: cmdgate config set <path> <value>")
			return 1
		}
	case 2:
		key, value = fs.Arg(0), fs.Arg(1)
	default:
		fmt.Fprintln(os.Stderr, "Usage: cmdgate config set <path> <value>")
		return 1
	}

	path := configFile(resolveConfigPath(*configFlag))
	if err := config.SetPath(path, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return 0
}
