// Command urlcheck checks URL lists for liveness under a cross-process session lock.
//
// Usage:
//
//	urlcheck run    [-config file] -user name [-column URL] [-format csv|json] [-out file] <input>
//	urlcheck status [-config file]
//	urlcheck unlock [-config file]
//	urlcheck serve  [-config file]
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

	"github.com/Sternrassler/urlcheck/internal/config"
	"github.com/Sternrassler/urlcheck/pkg/lock"
	"github.com/Sternrassler/urlcheck/pkg/logging"
	"github.com/rs/zerolog"
)

const (
	exitOK     = 0
	exitError  = 1
	exitUsage  = 2
	exitLocked = 3
)

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		err = runCheck(ctx, rest, stdout, stderr)
	case "status":
		err = runStatus(ctx, rest, stdout, stderr)
	case "unlock":
		err = runUnlock(ctx, rest, stdout, stderr)
	case "serve":
		err = runServe(ctx, rest, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	case errors.Is(err, lock.ErrLocked):
		fmt.Fprintln(stderr, err)
		return exitLocked
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `urlcheck checks URL lists for liveness.

Commands:
  run     check a URL list (CSV with header, or one URL per line)
  status  show who holds the session lock
  unlock  force-release the session lock
  serve   run the HTTP API (/health, /metrics, /lock, /check)

Run "urlcheck <command> -h" for command flags.
Settings come from -config (YAML) and URLCHECK_* environment variables.
`)
}

// newFlagSet returns a flag set with the shared -config flag.
func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("URLCHECK_CONFIG"), "path to YAML config file")
	return fs, configPath
}

// setup loads configuration and installs the global logger.
func setup(configPath string, stderr io.Writer) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	logCfg := cfg.LoggingConfig()
	logCfg.Output = stderr
	return cfg, logging.Setup(logCfg), nil
}

func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("status", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, _, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}

	locker, closeStore, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Fprintln(stdout, describeLock(locker.Status(ctx)))
	return nil
}

func runUnlock(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("unlock", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, _, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}

	locker, closeStore, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := locker.ForceRelease(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "lock released")
	return nil
}

func describeLock(locked bool, rec *lock.Record) string {
	if !locked {
		return "available"
	}
	return rec.String()
}
