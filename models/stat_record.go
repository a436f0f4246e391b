package models

import (
	"time"

	"stattrack/pkg/calibration"
	"stattrack/pkg/ocr"
	"stattrack/pkg/snapshot"
)

// StatRecord is one persisted snapshot. Nil columns are regions that were
// unrecognized or not part of the template that produced the row.
type StatRecord struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	Entity     string    `gorm:"size:64;not null;index:idx_entity_captured,priority:1"`
	CapturedAt time.Time `gorm:"not null;index:idx_entity_captured,priority:2"`
	Activity   *int
	Influence  *int
	Military   *int
	MilitaryLv *int
	Trade      *int
	TradeLv    *int
	Tech       *int
	TechLv     *int
	Culture    *int
	CultureLv  *int
}

// TableName pins the table name shared with the sqlite sink.
func (StatRecord) TableName() string { return "stat_records" }

func (r *StatRecord) columns() map[string]**int {
	return map[string]**int{
		calibration.FieldActivity:   &r.Activity,
		calibration.FieldInfluence:  &r.Influence,
		calibration.FieldMilitary:   &r.Military,
		calibration.FieldMilitaryLv: &r.MilitaryLv,
		calibration.FieldTrade:      &r.Trade,
		calibration.FieldTradeLv:    &r.TradeLv,
		calibration.FieldTech:       &r.Tech,
		calibration.FieldTechLv:     &r.TechLv,
		calibration.FieldCulture:    &r.Culture,
		calibration.FieldCultureLv:  &r.CultureLv,
	}
}

// KnownField reports whether the record has a column for field.
func KnownField(field string) bool {
	_, ok := (&StatRecord{}).columns()[field]
	return ok
}

// NewStatRecord maps a snapshot to a row. Fields without a column are dropped.
func NewStatRecord(s snapshot.Snapshot) StatRecord {
	rec := StatRecord{Entity: s.Entity, CapturedAt: s.CapturedAt}
	cols := rec.columns()
	for field, reading := range s.Values {
		col, ok := cols[field]
		if !ok || !reading.Recognized {
			continue
		}
		v := reading.Value
		*col = &v
	}
	return rec
}

// Snapshot converts the row back, restricted to fields. A NULL column comes
// back as ocr.Unrecognized.
func (r StatRecord) Snapshot(fields []string) snapshot.Snapshot {
	cols := r.columns()
	values := make(map[string]ocr.Reading, len(fields))
	for _, f := range fields {
		col, ok := cols[f]
		if !ok {
			continue
		}
		if *col == nil {
			values[f] = ocr.Unrecognized
			continue
		}
		values[f] = ocr.Recognized(**col)
	}
	return snapshot.Snapshot{Entity: r.Entity, Values: values, CapturedAt: r.CapturedAt}
}
