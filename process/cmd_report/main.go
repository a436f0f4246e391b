package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"stattrack/pkg/config"
	"stattrack/process/report"
	"stattrack/process/scrape"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	entity := flag.String("entity", "", "comma-separated entities to report (default: all known)")
	limit := flag.Int("limit", 20, "rows per entity (0 = all)")
	list := flag.Bool("list", false, "list matching rows")
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
	var entities []string
	if *entity != "" {
		for _, e := range strings.Split(*entity, ",") {
			if e = strings.TrimSpace(e); e != "" {
				entities = append(entities, e)
			}
		}
	} else {
		for _, e := range cal.Entities {
			entities = append(entities, e)
		}
		sort.Strings(entities)
	}

	s, err := scrape.OpenSink(cfg, cal.Template)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sink: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	if err := report.RunReport(context.Background(), os.Stdout, s, cal.Template.Fields(), entities, *limit, *list); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		s.Close()
		os.Exit(1)
	}
}
