package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/urlcheck/internal/urllist"
	"github.com/Sternrassler/urlcheck/pkg/checker"
	"github.com/Sternrassler/urlcheck/pkg/lock"
	"github.com/Sternrassler/urlcheck/pkg/logging"
	"github.com/Sternrassler/urlcheck/pkg/session"
)

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("run", stderr)
	user := fs.String("user", os.Getenv("USER"), "name recorded as the lock holder")
	column := fs.String("column", "", "CSV column holding the URLs (default: first column)")
	format := fs.String("format", "csv", "output format: csv or json")
	out := fs.String("out", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: run needs exactly one input file", errUsage)
	}
	if strings.TrimSpace(*user) == "" {
		return fmt.Errorf("%w: -user is required", errUsage)
	}
	if *format != "csv" && *format != "json" {
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	cfg, logger, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}

	list, err := readList(fs.Arg(0), *column)
	if err != nil {
		return err
	}

	runner, err := checker.NewRunner(cfg.RunnerConfig(), checker.WithLogger(logging.NewLogger("runner")))
	if err != nil {
		return err
	}

	locker, closeStore, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeStore()

	mgr := session.New(locker, runner, logging.NewLogger("session"))
	report, err := mgr.Run(ctx, *user, list.URLs(), func(p checker.Progress) {
		fmt.Fprintf(stderr, "checked %d/%d (batch %d/%d)\n", p.Done, p.Total, p.Batch, p.Batches)
	})
	if errors.Is(err, lock.ErrLocked) {
		if locked, rec := locker.Status(ctx); locked {
			return fmt.Errorf("%w: %s", lock.ErrLocked, rec)
		}
		return err
	}
	if err != nil {
		return err
	}

	logger.Info().
		Int("ok", report.OK).
		Int("broken", report.Broken).
		Int("switched", report.Switched).
		Msg("Writing results")

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if *format == "json" {
		return urllist.WriteJSON(w, report)
	}
	return urllist.WriteCSV(w, list, report.Results)
}

func readList(path, column string) (*urllist.List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	if urllist.IsCSV(path) {
		return urllist.ReadCSV(f, column)
	}
	if column != "" {
		return nil, fmt.Errorf("%w: -column only applies to CSV input", errUsage)
	}
	return urllist.ReadLines(f)
}
