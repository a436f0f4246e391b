package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stattrack/pkg/config"
	"stattrack/pkg/logger"
	"stattrack/pkg/source"
	"stattrack/process/scrape"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	interval := flag.Duration("interval", 0, "repeat every interval (0 = run once)")
	watch := flag.Bool("watch", false, "run a cycle whenever IMAGE_DIR receives a screenshot")
	dry := flag.Bool("dry-run", false, "decide but do not append")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *interval, *watch, *dry); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, interval time.Duration, watch, dry bool) error {
	p, err := scrape.NewPipeline(ctx, cfg, dry)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer p.Close()

	switch {
	case watch:
		dir, ok := p.Source.(*source.DirSource)
		if !ok {
			return fmt.Errorf("-watch requires IMAGE_DIR")
		}
		if _, err := p.Runner.RunCycle(ctx); err != nil {
			logger.WithError(err).Warn("initial cycle finished with errors")
		}
		return dir.Watch(ctx, 500*time.Millisecond, func(ctx context.Context) error {
			_, err := p.Runner.RunCycle(ctx)
			return err
		})
	case interval > 0:
		return p.Runner.RunLoop(ctx, interval)
	default:
		_, err = p.Runner.RunCycle(ctx)
		return err
	}
}
