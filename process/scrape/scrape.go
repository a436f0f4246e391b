// Package scrape runs one fetch, extract, decide and append cycle over every
// tracked entity.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/pkg/sink"
	"stattrack/pkg/snapshot"
	"stattrack/pkg/source"
)

// Outcome is what happened to one entity in a cycle.
type Outcome string

const (
	OutcomeInserted       Outcome = "inserted"
	OutcomeWouldInsert    Outcome = "would_insert"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeDecodeFailed   Outcome = "decode_failed"
	OutcomeDownloadFailed Outcome = "download_failed"
	OutcomeSinkFailed     Outcome = "sink_failed"
)

// EntityResult records one entity's outcome.
type EntityResult struct {
	Entity       string
	Outcome      Outcome
	Reason       string
	Unrecognized []string
	Err          error
}

// Summary is the result of one cycle.
type Summary struct {
	CycleID string
	Started time.Time
	Results []EntityResult
}

// Count returns how many entities ended with o.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Options tune a Runner.
type Options struct {
	// DryRun decides but never appends.
	DryRun bool
	// Archive, when set, keeps a copy of every inserted screenshot.
	Archive source.Archive
	// Now stamps snapshots; defaults to time.Now.
	Now func() time.Time
}

// Runner owns the collaborators of a cycle. It is not safe for concurrent
// RunCycle calls.
type Runner struct {
	source   source.Source
	builder  *snapshot.Builder
	detector *snapshot.Detector
	sink     sink.Sink
	regions  []ocr.Region
	opts     Options
	log      *logrus.Entry

	schemaReady bool
}

// NewRunner wires a runner.
func NewRunner(src source.Source, b *snapshot.Builder, d *snapshot.Detector, s sink.Sink, regions []ocr.Region, opts Options, log *logrus.Entry) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		source:   src,
		builder:  b,
		detector: d,
		sink:     s,
		regions:  regions,
		opts:     opts,
		log:      logger.OrDefault(log, "scrape"),
	}
}

// RunCycle fetches the latest screenshot per entity and appends the ones that
// show growth. A schema or listing failure aborts before any entity is
// processed. Per-entity sink failures do not stop the batch; they are joined
// into the returned error.
func (r *Runner) RunCycle(ctx context.Context) (Summary, error) {
	sum := Summary{CycleID: uuid.NewString(), Started: r.opts.Now()}
	log := r.log.WithField("cycle", sum.CycleID)

	if !r.schemaReady {
		if err := r.sink.EnsureSchema(ctx); err != nil {
			log.WithError(err).Error("sink schema check failed; aborting cycle")
			return sum, err
		}
		r.schemaReady = true
	}

	images, err := r.source.Fetch(ctx)
	if err != nil {
		log.WithError(err).Error("source fetch failed; aborting cycle")
		return sum, err
	}

	var errs []error
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res := r.processEntity(ctx, img)
		sum.Results = append(sum.Results, res)

		entry := log.WithFields(logrus.Fields{
			"entity":  res.Entity,
			"outcome": res.Outcome,
		})
		if res.Reason != "" {
			entry = entry.WithField("reason", res.Reason)
		}
		if len(res.Unrecognized) > 0 {
			entry = entry.WithField("unrecognized", res.Unrecognized)
		}
		switch res.Outcome {
		case OutcomeInserted, OutcomeWouldInsert:
			entry.Info("entity processed")
		case OutcomeSkipped:
			if len(res.Unrecognized) > 0 {
				entry.Warn("entity processed")
			} else {
				entry.Info("entity processed")
			}
		case OutcomeSinkFailed:
			entry.WithError(res.Err).Error("entity processed")
			errs = append(errs, fmt.Errorf("%s: %w", res.Entity, res.Err))
		default:
			entry.WithError(res.Err).Warn("entity processed")
		}
	}

	log.WithFields(logrus.Fields{
		"entities": len(sum.Results),
		"inserted": sum.Count(OutcomeInserted),
		"skipped":  sum.Count(OutcomeSkipped),
		"dry_run":  r.opts.DryRun,
	}).Info("cycle finished")
	return sum, errors.Join(errs...)
}

func (r *Runner) processEntity(ctx context.Context, img source.Image) EntityResult {
	res := EntityResult{Entity: img.Entity}
	if img.Err != nil {
		res.Outcome, res.Err = OutcomeDownloadFailed, img.Err
		return res
	}

	snap, err := r.builder.Build(ctx, img.Data, img.Entity, r.regions, r.opts.Now())
	if err != nil {
		res.Outcome, res.Err = OutcomeDecodeFailed, err
		return res
	}
	res.Unrecognized = snap.Unrecognized()

	last, err := r.sink.Latest(ctx, img.Entity)
	if err != nil {
		res.Outcome, res.Err = OutcomeSinkFailed, err
		return res
	}
	dec := r.detector.ShouldPersist(snap, last)
	res.Reason = dec.Reason()
	if !dec.Insert {
		res.Outcome = OutcomeSkipped
		return res
	}
	if r.opts.DryRun {
		res.Outcome = OutcomeWouldInsert
		return res
	}
	if err := r.sink.Append(ctx, snap); err != nil {
		res.Outcome, res.Err = OutcomeSinkFailed, err
		return res
	}
	res.Outcome = OutcomeInserted
	if r.opts.Archive != nil {
		if err := r.opts.Archive.Save(ctx, img, snap.CapturedAt); err != nil {
			r.log.WithError(err).WithField("entity", img.Entity).Warn("archive failed")
		}
	}
	return res
}

// RunLoop runs a cycle immediately and then every interval until ctx is done.
// Cycles never overlap; a failed cycle is logged and the loop continues.
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunCycle(ctx); err != nil {
			r.log.WithError(err).Warn("cycle finished with errors")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
