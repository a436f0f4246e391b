package repair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"stattrack/pkg/sink"
)

// ErrNotSupported is returned for sinks that cannot report schema drift.
var ErrNotSupported = errors.New("sink does not support schema checks")

// Run reports schema drift and, when confirmed, repairs it. With dryRun set,
// or without yes, nothing is changed.
func Run(ctx context.Context, w io.Writer, s sink.Sink, dryRun, yes bool) error {
	checker, ok := s.(sink.SchemaChecker)
	if !ok {
		return ErrNotSupported
	}
	drift, err := checker.CheckSchema(ctx)
	if err != nil {
		return err
	}
	if drift.OK() {
		fmt.Fprintln(w, "schema matches the configured fields; nothing to do")
		return nil
	}
	if drift.Header != nil {
		fmt.Fprintf(w, "stored header: %s\n", strings.Join(drift.Header, ","))
	}
	if len(drift.Missing) > 0 {
		fmt.Fprintln(w, "missing columns:")
		for _, m := range drift.Missing {
			fmt.Fprintf(w, " - %s\n", m)
		}
	}
	if dryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if !yes {
		fmt.Fprintln(w, "Rewrites the stored schema. Pass --yes to confirm execution. Aborting.")
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	after, err := checker.CheckSchema(ctx)
	if err != nil {
		return err
	}
	if !after.OK() {
		return fmt.Errorf("schema still drifts after repair: missing %v", after.Missing)
	}
	fmt.Fprintln(w, "schema repaired")
	return nil
}
