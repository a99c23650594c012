// Package repo implements the data persistence layer for the report run
// ledger, backed by GORM. This file provides repository functions for the
// ReportRun model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateReportRun inserts a ledger row for a finished (or failed) report run.
// The run ID is a randomly generated UUID, and CreatedAt is set to UTC.
func CreateReportRun(ctx context.Context, db *gorm.DB, periodStem, file string, users, messages int, runErr string) (*domain.ReportRun, error) {
	r := &domain.ReportRun{
		ID:        uuid.NewString(),
		Period:    periodStem,
		File:      file,
		Users:     users,
		Messages:  messages,
		Error:     runErr,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// MarkUploaded flags an existing run as delivered to the chat server.
// Returns ErrNotFound when no row matches id.
func MarkUploaded(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ReportRun{}).
		Where("id = ?", id).
		Update("uploaded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountReportRuns returns the total number of recorded runs.
func CountReportRuns(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ReportRun{}).
		Count(&total).Error
	return total, err
}

// ListReportRunsPage returns a paginated slice of runs, most recent first.
// Use CountReportRuns to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListReportRunsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ReportRun, error) {
	var out []domain.ReportRun
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
