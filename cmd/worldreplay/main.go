// Worldreplay audits and moves world histories.
//
//	worldreplay verify -db world.db <world_directory>
//	worldreplay export -db world.db -out world.jsonl.zst <world_directory>
//	worldreplay import -db world.db -in world.jsonl.zst <world_directory>
//	worldreplay check  -in world.jsonl.zst <world_directory>
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

	"github.com/nathoo/worldcore/archive"
	"github.com/nathoo/worldcore/config"
	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/loader"
	"github.com/nathoo/worldcore/types"
)

const usage = "usage: worldreplay <verify|export|import|check> [flags] <world_directory>"

type command struct {
	name    string
	cfg     config.Config
	archive string
}

func parseArgs(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New(usage)
	}
	cmd := command{name: args[0]}
	switch cmd.name {
	case "verify", "export", "import", "check":
	default:
		return command{}, fmt.Errorf("unknown command %q\n%s", cmd.name, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return command{}, err
	}
	cmd.cfg = cfg

	fs := flag.NewFlagSet("worldreplay "+cmd.name, flag.ContinueOnError)
	fs.StringVar(&cmd.cfg.DB, "db", cmd.cfg.DB, "sqlite database path")
	switch cmd.name {
	case "export":
		fs.StringVar(&cmd.archive, "out", "", "archive file to write")
	case "import", "check":
		fs.StringVar(&cmd.archive, "in", "", "archive file to read")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return command{}, err
	}
	if fs.NArg() > 0 {
		cmd.cfg.WorldDir = fs.Arg(0)
	}
	if cmd.cfg.WorldDir == "" {
		return command{}, errors.New("missing world directory")
	}
	if cmd.name != "check" && cmd.cfg.DB == "" {
		return command{}, fmt.Errorf("%s needs -db", cmd.name)
	}
	if cmd.name != "verify" && cmd.archive == "" {
		return command{}, fmt.Errorf("%s needs an archive path", cmd.name)
	}
	return cmd, nil
}

func main() {
	cmd, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd command, out io.Writer) error {
	w, err := loader.Load(cmd.cfg.WorldDir)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}
	worldID := w.Defs.World.ID

	switch cmd.name {
	case "check":
		a, err := archive.ReadFile(cmd.archive)
		if err != nil {
			return err
		}
		if a.Header.WorldID != worldID {
			return fmt.Errorf("archive holds world %q, content defines %q", a.Header.WorldID, worldID)
		}
		final, err := archive.Verify(ctx, a, w.Defs)
		if err != nil {
			return err
		}
		return report(out, "archive", final)

	case "export":
		st, err := cmd.cfg.Backend()
		if err != nil {
			return err
		}
		defer st.Close()
		h, err := archive.WriteFile(ctx, cmd.archive, st, worldID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "exported world=%s entries=%d..%d to %s\n", h.WorldID, h.BaseSequence+1, h.LastSequence, cmd.archive)
		return nil

	case "import":
		a, err := archive.ReadFile(cmd.archive)
		if err != nil {
			return err
		}
		if a.Header.WorldID != worldID {
			return fmt.Errorf("archive holds world %q, content defines %q", a.Header.WorldID, worldID)
		}
		st, err := cmd.cfg.Backend()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := archive.Import(ctx, st, a); err != nil {
			return err
		}
		fmt.Fprintf(out, "imported world=%s entries=%d\n", worldID, len(a.Entries))
		return nil
	}

	// verify: opening folds the log since the latest snapshot; Verify then
	// replays everything from genesis.
	eng, st, err := cmd.cfg.OpenWorld(ctx, w, io.Discard)
	if err != nil {
		return err
	}
	defer st.Close()
	defer eng.Close()
	if _, err := eng.Verify(ctx); err != nil {
		return err
	}
	return report(out, "log", eng.State())
}

func report(out io.Writer, what string, s *types.WorldState) error {
	d, err := state.Digest(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ok: %s for world=%s verified through seq=%d time=%d digest=%s\n", what, s.WorldID, s.Sequence, s.Time, d)
	return nil
}
