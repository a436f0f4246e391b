package scrape

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"stattrack/pkg/calibration"
	"stattrack/pkg/config"
	"stattrack/pkg/logger"
	"stattrack/pkg/ocr"
	"stattrack/pkg/sink"
	"stattrack/pkg/snapshot"
	"stattrack/pkg/source"
)

// OpenSink opens the configured sink for the template's fields.
func OpenSink(cfg *config.Config, tpl calibration.Template) (sink.Sink, error) {
	return sink.Open(cfg.Sink, sink.Options{Fields: tpl.Fields(), Location: cfg.Location}, logger.WithField("component", "sink"))
}

// OpenSource returns the local directory source when IMAGE_DIR is set, the
// Discord channel otherwise.
func OpenSource(cfg *config.Config, entities source.EntityTable) (source.Source, error) {
	if err := cfg.RequireSource(); err != nil {
		return nil, err
	}
	if cfg.ImageDir != "" {
		return source.NewDirSource(cfg.ImageDir, entities, logger.WithField("component", "dir-source")), nil
	}
	session, err := source.NewDiscordSession(cfg.DiscordToken, cfg.FetchTimeout)
	if err != nil {
		return nil, err
	}
	return source.NewDiscordSource(session, source.DiscordOptions{
		ChannelID:    cfg.DiscordChannelID,
		MessageLimit: cfg.MessageLimit,
		FetchTimeout: cfg.FetchTimeout,
	}, source.NewDownloader(cfg.DownloadTimeout), entities, logger.WithField("component", "discord-source")), nil
}

// OpenArchive returns the Azure archive when credentials are set, a local
// one when ARCHIVE_DIR is set, and nil otherwise.
func OpenArchive(ctx context.Context, cfg *config.Config) (source.Archive, error) {
	if cfg.AzureAccount != "" {
		return source.NewBlobArchive(ctx, cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
	}
	if cfg.ArchiveDir != "" {
		return source.LocalArchive{Dir: cfg.ArchiveDir}, nil
	}
	return nil, nil
}

// NewBuilder returns a snapshot builder for tpl over rec.
func NewBuilder(rec ocr.Recognizer, tpl calibration.Template, log *logrus.Entry) *snapshot.Builder {
	return snapshot.NewBuilder(ocr.NewExtractor(rec, tpl.Upscale, log), tpl.PreprocessOptions(), log)
}

// Pipeline is a runner plus everything it must release.
type Pipeline struct {
	Runner *Runner
	Source source.Source

	recognizer ocr.Recognizer
	sink       sink.Sink
}

// Close releases the recognizer and the sink.
func (p *Pipeline) Close() error {
	return errors.Join(p.recognizer.Close(), p.sink.Close())
}

// NewPipeline builds every collaborator from cfg. The recognizer is created
// once here and shared by all cycles.
func NewPipeline(ctx context.Context, cfg *config.Config, dryRun bool) (*Pipeline, error) {
	cal, err := cfg.Calibration()
	if err != nil {
		return nil, err
	}
	src, err := OpenSource(cfg, cal.Entities)
	if err != nil {
		return nil, err
	}
	archive, err := OpenArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}
	snk, err := OpenSink(cfg, cal.Template)
	if err != nil {
		return nil, err
	}
	rec, err := ocr.NewRecognizer(cfg.Recognizer)
	if err != nil {
		snk.Close()
		return nil, err
	}
	log := logger.WithField("component", "scrape")
	runner := NewRunner(
		src,
		NewBuilder(rec, cal.Template, log),
		snapshot.NewDetector(snapshot.DefaultRules(cfg.Bounds)),
		snk,
		cal.Template.Regions,
		Options{DryRun: dryRun, Archive: archive},
		log,
	)
	return &Pipeline{Runner: runner, Source: src, recognizer: rec, sink: snk}, nil
}
