// Webhook HTTP handlers.
//
// This file exposes the ingestion endpoint the chat server posts to:
//   - POST /webhook  (store one chat message)
//
// Handlers are transport-thin: they authenticate the shared-secret token,
// normalize the payload shape (JSON object or classic form encoding), call the
// webhook service, and translate results into HTTP responses. Duplicate
// deliveries are accepted on purpose; deduplication would lose attendance data.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/period"
	"github.com/tbourn/go-attendance-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// WebhookService persists incoming chat messages. Implementations should be
// safe for concurrent use and must honor the provided context.
type WebhookService interface {
	// Receive stores one payload and returns the message and its period.
	Receive(ctx context.Context, payload map[string]any) (*domain.RawMessage, period.Period, error)
}

// ReportService runs report generation and exposes the run ledger.
// Implementations should be safe for concurrent use and must honor the
// provided context.
type ReportService interface {
	// Resolve maps an optional period string to a concrete period.
	Resolve(stem string, now time.Time) (period.Period, error)
	// RunPeriod generates the workbook for one period.
	RunPeriod(ctx context.Context, p period.Period) (*domain.ReportRun, error)
	// RunAll generates workbooks for every stored partition.
	RunAll(ctx context.Context) ([]*domain.ReportRun, error)
	// ListRuns returns a page of ledger entries and the total count.
	ListRuns(ctx context.Context, page, pageSize int) ([]domain.ReportRun, int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for webhook ingestion and reports.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	webhookSvc WebhookService
	reportSvc  ReportService

	// db is used only for idempotency records on the report endpoint;
	// nil disables replay detection.
	db      *gorm.DB
	token   string
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. token is
// the webhook shared secret; empty disables authentication (dev only).
func New(webhookSvc WebhookService, reportSvc ReportService, db *gorm.DB, token string, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		webhookSvc: webhookSvc,
		reportSvc:  reportSvc,
		db:         db,
		token:      token,
		idemTTL:    idemTTL,
	}
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Ingest one chat message
// @Description Accepts a JSON object or form-encoded payload from the chat
// @Description server, authenticates it with the shared token, and appends it
// @Description to the billing-period partition.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       body body map[string]any true "Webhook payload"
//
// @Success     200  {object} map[string]string
// @Failure     400  {object} handlers.ErrorResponse "Empty or malformed payload"
// @Failure     403  {object} handlers.ErrorResponse "Token mismatch"
// @Failure     500  {object} handlers.ErrorResponse "Store failure"
// @Router      /webhook [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	payload, err := webhookPayload(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed payload")
		return
	}

	if !h.authorized(c, payload) {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "invalid token")
		return
	}

	_, p, err := h.webhookSvc.Receive(c.Request.Context(), payload)
	if err != nil {
		if err == services.ErrEmptyText {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message text is empty")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeStoreFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{"status": "ok", "period": p.Stem()})
}

// webhookPayload normalizes the two transport shapes chat servers use: a JSON
// object body, or classic application/x-www-form-urlencoded fields.
func webhookPayload(c *gin.Context) (map[string]any, error) {
	ct := c.ContentType()
	if strings.Contains(ct, "json") {
		payload := make(map[string]any)
		if err := c.ShouldBindJSON(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	payload := make(map[string]any, len(c.Request.PostForm))
	for k, vs := range c.Request.PostForm {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}
	return payload, nil
}

// authorized compares the payload (or query) token against the configured
// shared secret in constant time. An empty configured token disables auth.
func (h *Handlers) authorized(c *gin.Context, payload map[string]any) bool {
	if h.token == "" {
		return true
	}
	candidate, _ := payload["token"].(string)
	if candidate == "" {
		candidate = c.Query("token")
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(h.token)) == 1
}
