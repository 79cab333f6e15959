package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/goldfish-inc/evalita-prep/internal/config"
	"github.com/goldfish-inc/evalita-prep/internal/convert"
	"github.com/goldfish-inc/evalita-prep/internal/labels"
	"github.com/goldfish-inc/evalita-prep/internal/ledger"
	"github.com/goldfish-inc/evalita-prep/internal/metrics"
	"github.com/goldfish-inc/evalita-prep/internal/publish"
	"github.com/goldfish-inc/evalita-prep/internal/report"
)

// Run describes one conversion handed to Finalize.
type Run struct {
	ID         uuid.UUID
	Dataset    string
	Split      string
	Scheme     string
	Shuffled   bool
	Seed       uint64
	HasSeed    bool
	Summary    convert.Summary
	ReportPath string
	Started    time.Time
}

// NewRun starts a run with a fresh ID.
func NewRun(dataset, split string) Run {
	return Run{ID: uuid.New(), Dataset: dataset, Split: split, Started: time.Now()}
}

// Shuffler builds the choice shuffler for a run. A seed from the flag wins
// over the configured one; with neither the order is unpredictable.
func Shuffler(enabled bool, cfg *config.Config, flagSeed uint64, hasFlagSeed bool) (*labels.Shuffler, uint64, bool) {
	seed, hasSeed := cfg.ShuffleSeed, cfg.HasShuffleSeed
	if hasFlagSeed {
		seed, hasSeed = flagSeed, true
	}
	if !enabled || !hasSeed {
		return labels.NewShuffler(enabled, nil), seed, hasSeed
	}
	return labels.NewShuffler(true, labels.SeededSource(seed)), seed, true
}

// Finalize runs the optional steps after a successful conversion: the label
// report, the run ledger, the bucket upload and the metrics push. Only a
// report failure is returned. The remaining sinks are skipped when not
// configured and their failures are logged.
func Finalize(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger *log.Logger, run Run) error {
	files := run.Summary.Paths()

	if run.ReportPath != "" {
		if err := report.WriteLabelReport(run.ReportPath, run.Summary); err != nil {
			return err
		}
		logger.Printf("Label report written to: %s", run.ReportPath)
		files = append(files, run.ReportPath)
	}

	if cfg.DatabaseURL != "" {
		if err := recordRun(ctx, cfg.DatabaseURL, run); err != nil {
			logger.Printf("Failed to record run %s: %v", run.ID, err)
		} else {
			logger.Printf("Run %s recorded", run.ID)
		}
	}

	if cfg.S3.Bucket != "" {
		client, err := publish.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Printf("S3 client unavailable: %v", err)
		} else {
			p := publish.New(client, cfg.S3.Bucket, cfg.S3.Prefix, logger)
			if _, err := p.Publish(ctx, run.ID, run.Dataset, run.Split, files, run.Started); err != nil {
				logger.Printf("Upload failed: %v", err)
			}
		}
	}

	if cfg.PushgatewayURL != "" {
		if err := rec.Push(ctx, cfg.PushgatewayURL, run.Dataset); err != nil {
			logger.Printf("Metrics push failed: %v", err)
		}
	}
	return nil
}

func recordRun(ctx context.Context, dsn string, run Run) error {
	l, err := ledger.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer l.Close()
	return l.RecordRun(ctx, ledgerRun(run, time.Now()))
}

func ledgerRun(run Run, finished time.Time) ledger.Run {
	r := ledger.Run{
		ID:          run.ID,
		Dataset:     run.Dataset,
		Split:       run.Split,
		Scheme:      run.Scheme,
		Shuffled:    run.Shuffled,
		Rows:        run.Summary.Rows,
		Records:     run.Summary.Records(),
		OutputPaths: run.Summary.Paths(),
		LabelCounts: run.Summary.LabelCounts,
		StartedAt:   run.Started,
		FinishedAt:  finished,
	}
	if run.HasSeed {
		seed := run.Seed
		r.Seed = &seed
	}
	return r
}
