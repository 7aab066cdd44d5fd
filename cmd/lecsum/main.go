// Command lecsum transcribes a lecture recording and writes a transcript and
// a summary next to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/pipeline"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 on success, 1 on a failed run and 2
// on a usage error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, factory pipeline.Factory) int {
	var (
		configPath  string
		verbose     bool
		showVersion bool
	)
	fs := flag.NewFlagSet("lecsum", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configPath, "c", "", "'lecsum.yaml' configuration file")
	fs.StringVar(&configPath, "config", "", "'lecsum.yaml' configuration file")
	fs.BoolVar(&verbose, "v", false, "Log progress to stderr")
	fs.BoolVar(&verbose, "verbose", false, "Log progress to stderr")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: lecsum [-c config] [-v] file")
		fmt.Fprintln(stderr, "Automatically transcribe and summarize lecture recordings.")
		fs.PrintDefaults()
	}

	// Flags may follow the file name.
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var positional []string
	for fs.NArg() > 0 {
		positional = append(positional, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return 2
		}
	}

	if showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}
	if len(positional) != 1 {
		fs.Usage()
		return 2
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, src, err := config.Resolve(configPath, config.DefaultSearchPaths())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("configuration resolved", slog.String("source", src.String()))

	p := pipeline.New(cfg, pipeline.Options{Factory: factory}, logger)
	res, err := p.Run(ctx, pipeline.Job{AudioPath: positional[0], Settings: cfg.Settings})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("wrote results",
		slog.String("transcript", res.TranscriptPath),
		slog.String("summary", res.SummaryPath))
	return 0
}
