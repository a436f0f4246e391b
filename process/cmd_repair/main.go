package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"stattrack/pkg/config"
	"stattrack/process/repair"
	"stattrack/process/scrape"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	dryRun := flag.Bool("dry-run", true, "Don't change anything; show the drift")
	yes := flag.Bool("yes", false, "Confirm the repair (required to actually rewrite)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cal, err := cfg.Calibration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibration: %v\n", err)
		os.Exit(2)
	}
	// Explicit repair may migrate even when automatic migration is off.
	cfg.Sink.AutoMigrate = true
	s, err := scrape.OpenSink(cfg, cal.Template)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sink: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	if err := repair.Run(context.Background(), os.Stdout, s, *dryRun, *yes); err != nil {
		fmt.Fprintf(os.Stderr, "repair failed: %v\n", err)
		s.Close()
		os.Exit(1)
	}
}
