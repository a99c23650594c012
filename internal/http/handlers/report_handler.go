// Report HTTP handlers.
//
// This file exposes REST endpoints for report generation and its run ledger:
//   - POST /reports  (trigger a run; Idempotency-Key aware)
//   - GET  /reports  (list recorded runs, paginated)
//
// Report generation is expensive (it re-reads and re-classifies a whole
// partition), so POST /reports honors the Idempotency-Key header: a replayed
// key returns the recorded run reference instead of generating again.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-attendance-backend/internal/http/middleware"
	"github.com/tbourn/go-attendance-backend/internal/repo"
	"github.com/tbourn/go-attendance-backend/internal/services"
	"github.com/tbourn/go-attendance-backend/internal/utils"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// TriggerReportRequest is the optional JSON payload for POST /reports.
//
// Period selects one partition by stem (e.g. "messages_202403_11-202404_10");
// empty means the period containing the current instant. All overrides Period
// and generates a workbook for every stored partition.
type TriggerReportRequest struct {
	Period string `json:"period,omitempty" example:"messages_202403_11-202404_10"`
	All    bool   `json:"all,omitempty"`
}

// TriggerReport godoc
// @ID          triggerReport
// @Summary     Generate attendance workbook(s)
// @Description Runs report generation for one period (or all stored periods)
// @Description and records the run in the ledger. Safe to retry with an
// @Description Idempotency-Key header.
// @Tags        Reports
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key header string false "Retry-safe operation key"
// @Param       body body handlers.TriggerReportRequest false "Run options"
//
// @Success     201  {object} map[string]any
// @Failure     400  {object} handlers.ErrorResponse "Invalid period"
// @Failure     404  {object} handlers.ErrorResponse "No partition for period"
// @Failure     500  {object} handlers.ErrorResponse "Generation failed"
// @Router      /reports [post]
func (h *Handlers) TriggerReport(c *gin.Context) {
	var req TriggerReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed payload")
			return
		}
	}
	if req.Period == "" {
		req.Period = c.Query("period")
	}

	// Serve replays from the idempotency record instead of re-generating.
	if middleware.IsReplay(c) && h.db != nil {
		if key, found := middleware.GetIdempotencyKey(c); found {
			if rec, err := repo.GetIdempotency(c.Request.Context(), h.db, key, time.Now().UTC()); err == nil && rec != nil {
				ok(c, rec.Status, gin.H{"run_id": rec.RunID, "replay": true})
				return
			}
		}
	}

	if req.All {
		runs, err := h.reportSvc.RunAll(c.Request.Context())
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
			return
		}
		// Batch triggers are recorded under the first run so a retried key
		// replays instead of regenerating every partition.
		runID := ""
		if len(runs) > 0 {
			runID = runs[0].ID
		}
		h.rememberRun(c, runID)
		ok(c, http.StatusCreated, gin.H{"runs": runs})
		return
	}

	p, err := h.reportSvc.Resolve(req.Period, time.Now())
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid period")
		return
	}

	run, err := h.reportSvc.RunPeriod(c.Request.Context(), p)
	if err != nil {
		switch err {
		case services.ErrPeriodNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no messages for period")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		}
		return
	}

	h.rememberRun(c, run.ID)
	ok(c, http.StatusCreated, gin.H{"run": run})
}

// ListReports godoc
// @ID          listReports
// @Summary     List report runs
// @Description Returns recorded report runs, most recent first.
// @Tags        Reports
// @Produce     json
//
// @Param       page       query int false "Page number (1-based)"  default(1)
// @Param       page_size  query int false "Items per page"         default(20)
//
// @Success     200  {object} map[string]any
// @Failure     500  {object} handlers.ErrorResponse "Ledger query failed"
// @Router      /reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	if h.db == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, "run ledger not configured")
		return
	}

	page := utils.AtoiDefault(c.Query("page"), defaultPage)
	pageSize := utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	page, pageSize = utils.ClampPage(page, pageSize, defaultPageSize, maxPageSize)

	items, total, err := h.reportSvc.ListRuns(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// rememberRun persists the idempotency record for a completed run so retries
// with the same key replay instead of regenerating. Best effort: a write
// failure only disables replay for this key.
func (h *Handlers) rememberRun(c *gin.Context, runID string) {
	if h.db == nil {
		return
	}
	key, found := middleware.GetIdempotencyKey(c)
	if !found {
		return
	}
	if _, err := repo.CreateIdempotency(c.Request.Context(), h.db, key, runID, http.StatusCreated, h.idemTTL); err != nil && err != repo.ErrDuplicate {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record write failed")
	}
}
