// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jllopis/sabia/internal/app"
	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/synth/prompts"
)

type globalFlags struct {
	ConfigPath string
	Profile    string
	Mode       string
	Addr       string
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help {
		printUsage(os.Stdout)
		return
	}

	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "version":
		printVersion(os.Stdout)
		return
	case "help":
		printUsage(os.Stdout)
		return
	}

	cfg, err := loadConfig(global)
	if err != nil {
		fatal(err)
	}

	switch cmd {
	case "serve":
		ensureNoArgs(args)
		err = runServe(ctx, cfg)
	case "ask":
		err = runAsk(ctx, cfg, args, os.Stdout)
	case "chat":
		ensureNoArgs(args)
		err = runChat(ctx, cfg, os.Stdin, os.Stdout)
	case "index":
		ensureNoArgs(args)
		err = runIndex(ctx, cfg, os.Stdout)
	case "mcp":
		ensureNoArgs(args)
		err = runMCP(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fatal(err)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		if arg == "-h" || arg == "--help" {
			flags.Help = true
			return flags, nil, nil
		}

		name, value, inline := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		var target *string
		switch name {
		case "config":
			target = &flags.ConfigPath
		case "profile":
			target = &flags.Profile
		case "mode":
			target = &flags.Mode
		case "addr":
			target = &flags.Addr
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
		if !inline {
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --%s", name)
			}
			value = args[i+1]
			i++
		}
		*target = value
	}
	return flags, nil, nil
}

func loadConfig(flags globalFlags) (*config.Config, error) {
	overrides := map[string]any{}
	if flags.Mode != "" {
		overrides["server.mode"] = flags.Mode
	}
	if flags.Addr != "" {
		overrides["server.addr"] = flags.Addr
	}
	cfg, err := config.LoadOptions(config.Options{
		Path:      flags.ConfigPath,
		Profile:   flags.Profile,
		Overrides: overrides,
	})
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, WrapConfigError(err, flags.ConfigPath)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)
	return a.Serve(ctx)
}

func runAsk(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: sabia ask \"<question>\"")
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	answer := a.Ask(ctx, question)
	fmt.Fprintln(out, answer.Text)
	if answer.Cause != nil {
		fmt.Fprintf(os.Stderr, "degraded: %s\n", answer.Cause.Code)
	}
	return nil
}

func runIndex(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := app.NewLogger(cfg)
	stats, err := app.Index(ctx, cfg, logger)
	if err != nil {
		return WrapIndexError(err, cfg.Knowledge.CorpusPath)
	}
	fmt.Fprintf(out, "indexed %s into %q: %d chunks (%d skipped), %d dimensions in %s\n",
		stats.Source, cfg.Knowledge.Collection, stats.Chunks, stats.Skipped, stats.Dimensions,
		stats.Duration.Round(time.Millisecond))
	return nil
}

// runMCP serves over stdio, so nothing else may write to stdout.
func runMCP(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg, app.WithTelemetryOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer closeApp(a)
	return a.MCPServer().ServeStdio()
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, app.Version)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Sabia, %s

Usage:
  sabia [global flags] <command> [args]

Global flags:
  --config <path>      YAML configuration file
  --profile <name>     Merge config.<name>.yaml over the base file
  --mode <mode>        search, knowledge, plain or agent
  --addr <addr>        Listen address for serve, server address for chat

Commands:
  serve                Run the HTTP API (default)
  ask "<question>"     Answer one question and exit
  chat                 Interactive terminal client for a running server
  index                Build the knowledge index from knowledge.corpus_path
  mcp                  Serve capabilities and ask over MCP stdio
  version              Print the version
`, prompts.Default().Messages.Banner)
}

func fatal(err error) {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		cliErr.PrintError(os.Stderr)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
