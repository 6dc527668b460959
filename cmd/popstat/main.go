// Package main inspects a population archive: list, show, export and delete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pthm-cable/plife/archive"
	"github.com/pthm-cable/plife/config"
)

const usage = `usage: popstat [flags] <command> [args]

commands:
  list               archived populations, best first
  show <name>        genetic analysis of one population
  export <file.csv>  statistics of every population as CSV
  delete <name>      remove a population

flags:
`

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	archivePath := flag.String("archive", "", "Population archive path (empty = use config)")
	archiveBackend := flag.String("archive-backend", "", "Archive backend: memory | json | sqlite (empty = use config)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *archivePath != "" {
		cfg.Archive.Path = *archivePath
	}
	if *archiveBackend != "" {
		cfg.Archive.Backend = *archiveBackend
	}

	ctx := context.Background()
	store, err := archive.Open(ctx, cfg.Archive.Backend, cfg.Archive.Path)
	if err != nil {
		slog.Error("failed to open archive", "backend", cfg.Archive.Backend, "path", cfg.Archive.Path, "error", err)
		os.Exit(1)
	}
	defer archive.CloseIfSupported(store)

	if err := run(ctx, store, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		slog.Error("popstat failed", "error", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// run dispatches one subcommand against store, writing to out.
func run(ctx context.Context, store archive.Store, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "list":
		if len(args) != 0 {
			return errUsage
		}
		return list(ctx, store, out)

	case "show":
		if len(args) != 1 {
			return errUsage
		}
		p, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, archive.Summary(p))
		return nil

	case "export":
		if len(args) != 1 {
			return errUsage
		}
		pops, err := store.List(ctx)
		if err != nil {
			return err
		}
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("creating %s: %w", args[0], err)
		}
		if err := archive.ExportCSV(f, pops); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(out, "exported %d populations to %s\n", len(pops), args[0])
		return nil

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", args[0])
		return nil
	}
	return errUsage
}

func list(ctx context.Context, store archive.Store, out io.Writer) error {
	pops, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(pops) == 0 {
		fmt.Fprintln(out, "no saved populations")
		return nil
	}
	fmt.Fprintf(out, "%-24s %-19s %10s %9s %6s\n", "NAME", "SAVED", "SCORE", "COHERENCE", "TYPES")
	for _, p := range pops {
		stale := ""
		if p.Stale {
			stale = " (stale)"
		}
		fmt.Fprintf(out, "%-24s %-19s %10.1f %9.3f %6d%s\n",
			p.Name, p.Timestamp, p.Score, p.GeneticMetrics.CoherenceScore, p.Genotype.TypeCount, stale)
	}
	return nil
}
