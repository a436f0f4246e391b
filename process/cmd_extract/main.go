package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stattrack/pkg/calibration"
	"stattrack/pkg/config"
	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/process/scrape"
)

// Reads one local screenshot with the configured template and prints every
// region. Nothing is persisted.
func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	in := flag.String("in", "", "screenshot to read")
	entity := flag.String("entity", "", "entity name (default: looked up from the filename)")
	flag.Parse()
	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: cmd_extract -in CountryState_Yiguo.png")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger.UseText()
	logger.SetLevel(cfg.LogLevel)

	cal, err := cfg.Calibration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibration: %v\n", err)
		os.Exit(2)
	}
	name := *entity
	if name == "" {
		name = cal.Entities[filepath.Base(*in)]
	}
	if err := extract(cfg, cal, *in, name); err != nil {
		fmt.Fprintf(os.Stderr, "extract failed: %v\n", err)
		os.Exit(1)
	}
}

func extract(cfg *config.Config, cal calibration.Calibration, path, entity string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rec, err := ocr.NewRecognizer(cfg.Recognizer)
	if err != nil {
		return err
	}
	defer rec.Close()

	b := scrape.NewBuilder(rec, cal.Template, logger.WithField("component", "extract"))
	snap, err := b.Build(context.Background(), raw, entity, cal.Template.Regions, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("--- %s (%s, template=%s) ---\n", filepath.Base(path), entity, cal.Template.Name)
	for _, f := range cal.Template.Fields() {
		r, _ := snap.Get(f)
		v := r.String()
		if v == "" {
			v = "<unrecognized>"
		}
		fmt.Printf("%-12s %s\n", f, v)
	}
	return nil
}
