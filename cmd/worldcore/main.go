// Worldcore runs a world from a directory of Lua content and seats one
// player at it.
// Usage: worldcore [flags] <world_directory>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/nathoo/worldcore/cli"
	"github.com/nathoo/worldcore/config"
	"github.com/nathoo/worldcore/loader"
	"github.com/nathoo/worldcore/telemetry"
	"github.com/nathoo/worldcore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	cfg         config.Config
	showVersion bool
	plain       bool
	trace       bool
	script      string
}

func parseArgs(args []string) (options, error) {
	cfg, err := config.Load()
	if err != nil {
		return options{}, err
	}
	opts := options{cfg: cfg}

	fs := flag.NewFlagSet("worldcore", flag.ContinueOnError)
	opts.cfg.Bind(fs)
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	fs.BoolVar(&opts.plain, "plain", false, "use the line-oriented interface even on a terminal")
	fs.BoolVar(&opts.trace, "trace", false, "print the outcome behind every action")
	fs.StringVar(&opts.script, "script", "", "play commands from a file (implies -plain)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: worldcore [flags] <world_directory>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.showVersion {
		return opts, nil
	}
	if fs.NArg() > 0 {
		opts.cfg.WorldDir = fs.Arg(0)
	}
	if opts.cfg.WorldDir == "" {
		fs.Usage()
		return options{}, errors.New("missing world directory")
	}
	return opts, opts.cfg.Validate()
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("worldcore %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg := opts.cfg

	w, err := loader.Load(cfg.WorldDir)
	if err != nil {
		return fmt.Errorf("loading world: %w", err)
	}
	for _, warn := range w.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", warn)
	}

	shutdown, err := telemetry.Setup(ctx, "worldcore", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	logs, closeLogs, err := cfg.LogOutput()
	if err != nil {
		return err
	}
	defer closeLogs()

	eng, st, err := cfg.OpenWorld(ctx, w, logs)
	if err != nil {
		return err
	}
	defer st.Close()
	defer eng.Close()

	player, err := cfg.PickPlayer(eng.State())
	if err != nil {
		return err
	}
	session := cli.NewSession(eng, player)
	session.Trace = opts.trace

	// Script mode: read the file, force plain, echo commands.
	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c := &cli.CLI{Session: session, In: f, Out: stdout, EchoInput: true}
		c.Run(ctx)
		return nil
	}

	// Use plain CLI if -plain or stdout is not a terminal.
	if opts.plain || !isTerminal() {
		c := cli.New(session)
		c.Out = stdout
		c.Run(ctx)
		return nil
	}

	if err := tui.Run(ctx, session); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// isTerminal reports whether both ends of the session are a terminal.
func isTerminal() bool {
	return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd())
}
