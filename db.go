package main

import (
	"sort"
	"time"

	"stattrack/pkg/calibration"
	"stattrack/pkg/config"
	"stattrack/pkg/sink"
	"stattrack/process/scrape"
)

var (
	store    sink.Sink
	fields   []string
	entities []string
	zone     = time.UTC
)

// initStore opens the configured sink for the configured template. The API
// only reads from it.
func initStore(cfg *config.Config) error {
	cal, err := cfg.Calibration()
	if err != nil {
		return err
	}
	s, err := scrape.OpenSink(cfg, cal.Template)
	if err != nil {
		return err
	}
	useStore(s, cal, cfg.Location)
	return nil
}

func useStore(s sink.Sink, cal calibration.Calibration, loc *time.Location) {
	store = s
	fields = cal.Template.Fields()
	entities = entities[:0]
	for _, e := range cal.Entities {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	if loc != nil {
		zone = loc
	}
}
