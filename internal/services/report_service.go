// Package services – ReportService
//
// This file implements ReportService, which owns the report lifecycle: load a
// period partition, classify and annotate its messages, render the workbook,
// record the run in the ledger, and optionally hand the file to an uploader.
//
// Period isolation: RunAll processes each partition independently, so a
// corrupt file fails its own run without blocking the others.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the partition stem and row counts.
package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-backend/internal/classify"
	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/period"
	"github.com/tbourn/go-attendance-backend/internal/report"
	"github.com/tbourn/go-attendance-backend/internal/repo"
	"github.com/tbourn/go-attendance-backend/internal/store"
)

// Uploader delivers a finished workbook to the chat server.
type Uploader interface {
	Upload(ctx context.Context, path string, p period.Period) (bool, error)
}

// ReportService generates attendance workbooks from stored partitions.
type ReportService struct {
	Store  *store.Store
	OutDir string

	// Loc buckets "current period" the same way the webhook stores messages;
	// nil keeps the caller's clock as-is.
	Loc *time.Location

	// DB is the run ledger; nil disables ledger records (CLI one-shots).
	DB *gorm.DB

	// Classifier labels each message; nil falls back to keyword matching.
	Classifier  classify.Classifier
	Concurrency int

	// Uploader is optional; upload failures are logged, never fatal.
	Uploader Uploader
}

// Resolve maps an optional period string to a concrete period: empty means
// the period containing now, anything else must be a valid partition stem.
func (s *ReportService) Resolve(stem string, now time.Time) (period.Period, error) {
	if stem == "" {
		if s.Loc != nil {
			now = now.In(s.Loc)
		}
		return period.For(now), nil
	}
	p, ok := period.ParseStem(stem)
	if !ok {
		return period.Period{}, ErrInvalidPeriod
	}
	return p, nil
}

// RunPeriod generates the workbook for one period. It returns
// ErrPeriodNotFound when no partition exists; load and render failures are
// recorded in the ledger before being returned.
func (s *ReportService) RunPeriod(ctx context.Context, p period.Period) (*domain.ReportRun, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "RunPeriod",
		trace.WithAttributes(attribute.String("period.stem", p.Stem())),
	)
	defer span.End()

	if !s.Store.Exists(p) {
		return nil, ErrPeriodNotFound
	}

	msgs, err := s.Store.Load(ctx, p)
	if err != nil {
		s.recordRun(ctx, p, "", 0, 0, err)
		reportRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	rep := report.Build(ctx, msgs, report.Options{
		Classifier:  s.Classifier,
		Concurrency: s.Concurrency,
	})
	ci, co, un := rep.Counts()
	classifications.WithLabelValues("clock_in").Add(float64(ci))
	classifications.WithLabelValues("clock_out").Add(float64(co))
	classifications.WithLabelValues("unclassified").Add(float64(un))
	span.SetAttributes(
		attribute.Int("report.users", len(rep.Users)),
		attribute.Int("report.messages", rep.Messages),
	)

	outPath := filepath.Join(s.OutDir, p.XLSXName())
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		s.recordRun(ctx, p, "", len(rep.Users), rep.Messages, err)
		reportRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := rep.WriteXLSX(outPath); err != nil {
		s.recordRun(ctx, p, "", len(rep.Users), rep.Messages, err)
		reportRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	run := s.recordRun(ctx, p, outPath, len(rep.Users), rep.Messages, nil)
	reportRuns.WithLabelValues("ok").Inc()
	log.Ctx(ctx).Info().
		Str("period", p.Stem()).
		Str("file", outPath).
		Int("users", len(rep.Users)).
		Int("messages", rep.Messages).
		Msg("report generated")

	s.upload(ctx, run, outPath, p)
	return run, nil
}

// RunAll generates workbooks for every partition in the store. Each period is
// isolated: a failed run is recorded and skipped, successful runs proceed.
func (s *ReportService) RunAll(ctx context.Context) ([]*domain.ReportRun, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "RunAll")
	defer span.End()

	periods, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]*domain.ReportRun, 0, len(periods))
	for _, p := range periods {
		run, err := s.RunPeriod(ctx, p)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("period", p.Stem()).
				Msg("report run failed")
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListRuns returns a page of ledger entries, most recent first.
func (s *ReportService) ListRuns(ctx context.Context, page, pageSize int) ([]domain.ReportRun, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountReportRuns(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ReportRun{}, 0, nil
	}
	items, err := repo.ListReportRunsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// recordRun writes a ledger row when a DB is configured. Without one it still
// returns an in-memory record so callers get consistent results.
func (s *ReportService) recordRun(ctx context.Context, p period.Period, file string, users, messages int, runErr error) *domain.ReportRun {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if s.DB == nil {
		return &domain.ReportRun{
			Period:    p.Stem(),
			File:      file,
			Users:     users,
			Messages:  messages,
			Error:     msg,
			CreatedAt: time.Now().UTC(),
		}
	}
	run, err := repo.CreateReportRun(ctx, s.DB, p.Stem(), file, users, messages, msg)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("period", p.Stem()).Msg("ledger write failed")
		return &domain.ReportRun{Period: p.Stem(), File: file, Users: users, Messages: messages, Error: msg}
	}
	return run
}

func (s *ReportService) upload(ctx context.Context, run *domain.ReportRun, path string, p period.Period) {
	if s.Uploader == nil {
		return
	}
	ok, err := s.Uploader.Upload(ctx, path, p)
	if err != nil || !ok {
		uploads.WithLabelValues("error").Inc()
		log.Ctx(ctx).Warn().Err(err).
			Str("period", p.Stem()).
			Msg("report upload failed")
		return
	}
	uploads.WithLabelValues("ok").Inc()
	run.Uploaded = true
	if s.DB != nil && run.ID != "" {
		if err := repo.MarkUploaded(ctx, s.DB, run.ID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("run", run.ID).Msg("could not mark run uploaded")
		}
	}
}
