package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stattrack/models"
	"stattrack/pkg/logger"
	"stattrack/pkg/snapshot"
)

// GormSink stores snapshots in Postgres through the StatRecord model.
type GormSink struct {
	db          *gorm.DB
	opts        Options
	autoMigrate bool
	log         *logrus.Entry
}

// OpenPostgres connects to dsn. When autoMigrate is false EnsureSchema only
// verifies the table instead of migrating it.
func OpenPostgres(dsn string, opts Options, autoMigrate bool, log *logrus.Entry) (*GormSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: DB_DSN is not set", ErrSinkUnavailable)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, unavailable("connect postgres", err)
	}
	return NewGormSink(db, opts, autoMigrate, log)
}

// NewGormSink wraps an existing connection.
func NewGormSink(db *gorm.DB, opts Options, autoMigrate bool, log *logrus.Entry) (*GormSink, error) {
	if err := validateFields(opts.Fields); err != nil {
		return nil, err
	}
	for _, f := range opts.Fields {
		if !models.KnownField(f) {
			return nil, fmt.Errorf("%w: field %q has no column in stat_records", ErrSinkUnavailable, f)
		}
	}
	return &GormSink{db: db, opts: opts, autoMigrate: autoMigrate, log: logger.OrDefault(log, "gorm-sink")}, nil
}

// EnsureSchema implements Sink.
func (g *GormSink) EnsureSchema(ctx context.Context) error {
	db := g.db.WithContext(ctx)
	if g.autoMigrate {
		if err := db.AutoMigrate(&models.StatRecord{}); err != nil {
			return unavailable("migrate stat_records", err)
		}
		return nil
	}
	drift, err := g.CheckSchema(ctx)
	if err != nil {
		return err
	}
	if !drift.OK() {
		return fmt.Errorf("%w: stat_records is missing columns %v and DB_AUTO_MIGRATE is off", ErrSinkUnavailable, drift.Missing)
	}
	return nil
}

// CheckSchema implements SchemaChecker.
func (g *GormSink) CheckSchema(ctx context.Context) (Drift, error) {
	m := g.db.WithContext(ctx).Migrator()
	var d Drift
	if !m.HasTable(&models.StatRecord{}) {
		d.Missing = append([]string{}, g.opts.Fields...)
		return d, nil
	}
	for _, f := range g.opts.Fields {
		if !m.HasColumn(&models.StatRecord{}, f) {
			d.Missing = append(d.Missing, f)
		}
	}
	return d, nil
}

// Append implements Sink.
func (g *GormSink) Append(ctx context.Context, s snapshot.Snapshot) error {
	rec := models.NewStatRecord(s)
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return unavailable("insert stat_record", err)
	}
	return nil
}

// Latest implements Sink.
func (g *GormSink) Latest(ctx context.Context, entity string) (*snapshot.Snapshot, error) {
	var rec models.StatRecord
	err := g.db.WithContext(ctx).
		Where("entity = ?", entity).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("latest stat_record", err)
	}
	s := g.local(rec.Snapshot(g.opts.Fields))
	return &s, nil
}

// History implements Sink.
func (g *GormSink) History(ctx context.Context, entity string, limit int) ([]snapshot.Snapshot, error) {
	q := g.db.WithContext(ctx).Where("entity = ?", entity).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []models.StatRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, unavailable("history stat_records", err)
	}
	out := make([]snapshot.Snapshot, 0, len(recs))
	for _, r := range recs {
		out = append(out, g.local(r.Snapshot(g.opts.Fields)))
	}
	return out, nil
}

func (g *GormSink) local(s snapshot.Snapshot) snapshot.Snapshot {
	s.CapturedAt = s.CapturedAt.In(g.opts.location())
	return s
}

// Close implements Sink.
func (g *GormSink) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var (
	_ Sink          = (*GormSink)(nil)
	_ SchemaChecker = (*GormSink)(nil)
)
