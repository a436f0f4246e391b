package snapshot

import (
	"strings"

	"stattrack/pkg/calibration"
)

// Mode selects how a field's delta is judged.
type Mode int

const (
	// ModeIncrease fires when 0 < delta < Bound.
	ModeIncrease Mode = iota
	// ModeAnyChange fires when delta != 0 and |delta| < Bound.
	ModeAnyChange
)

func (m Mode) String() string {
	if m == ModeAnyChange {
		return "any-change"
	}
	return "increase"
}

// Rule monitors one field. Deltas at or beyond Bound are treated as misreads.
type Rule struct {
	Field string
	Mode  Mode
	Bound int
}

// Bounds are the noise thresholds per field class.
type Bounds struct {
	Stat      int
	Level     int
	Influence int
	Activity  int
}

// DefaultBounds returns the thresholds the tracker has historically used.
func DefaultBounds() Bounds {
	return Bounds{Stat: 1000, Level: 10, Influence: 10, Activity: 100}
}

// DefaultRules covers every field of the built-in templates. Rules for fields
// a snapshot does not carry simply never fire.
func DefaultRules(b Bounds) []Rule {
	return []Rule{
		{Field: calibration.FieldMilitary, Mode: ModeIncrease, Bound: b.Stat},
		{Field: calibration.FieldTrade, Mode: ModeIncrease, Bound: b.Stat},
		{Field: calibration.FieldTech, Mode: ModeIncrease, Bound: b.Stat},
		{Field: calibration.FieldCulture, Mode: ModeIncrease, Bound: b.Stat},
		{Field: calibration.FieldMilitaryLv, Mode: ModeIncrease, Bound: b.Level},
		{Field: calibration.FieldTradeLv, Mode: ModeIncrease, Bound: b.Level},
		{Field: calibration.FieldTechLv, Mode: ModeIncrease, Bound: b.Level},
		{Field: calibration.FieldCultureLv, Mode: ModeIncrease, Bound: b.Level},
		{Field: calibration.FieldInfluence, Mode: ModeIncrease, Bound: b.Influence},
		{Field: calibration.FieldActivity, Mode: ModeAnyChange, Bound: b.Activity},
	}
}

// Decision is the outcome of comparing a candidate to the last persisted
// snapshot.
type Decision struct {
	Insert bool
	// Fired lists the fields whose change triggered the insert, in rule order.
	Fired []string
	// FirstSeen is set when there was no prior snapshot.
	FirstSeen bool
}

// Reason is a short human-readable summary for logs.
func (d Decision) Reason() string {
	switch {
	case d.FirstSeen:
		return "no history"
	case d.Insert:
		return "grew: " + strings.Join(d.Fired, ",")
	default:
		return "no growth within bounds"
	}
}

// Detector decides whether a snapshot is persisted.
type Detector struct {
	rules []Rule
}

// NewDetector returns a detector for rules.
func NewDetector(rules []Rule) *Detector {
	return &Detector{rules: rules}
}

// ShouldPersist returns Insert when last is nil or any rule fires. A field
// fires only when it is recognized in both snapshots; an unreadable field
// never blocks another field from firing.
func (d *Detector) ShouldPersist(next Snapshot, last *Snapshot) Decision {
	if last == nil {
		return Decision{Insert: true, FirstSeen: true}
	}
	var dec Decision
	for _, rule := range d.rules {
		n, ok := next.Get(rule.Field)
		if !ok || !n.Recognized {
			continue
		}
		l, ok := last.Get(rule.Field)
		if !ok || !l.Recognized {
			continue
		}
		if rule.fires(n.Value - l.Value) {
			dec.Fired = append(dec.Fired, rule.Field)
		}
	}
	dec.Insert = len(dec.Fired) > 0
	return dec
}

func (r Rule) fires(delta int) bool {
	switch r.Mode {
	case ModeAnyChange:
		if delta < 0 {
			delta = -delta
		}
		return delta != 0 && delta < r.Bound
	default:
		return delta > 0 && delta < r.Bound
	}
}
