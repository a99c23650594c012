// Package domain – run ledger models.
//
// These types are mapped with GORM onto the SQLite ledger that records report
// generation history and idempotency keys for the report trigger endpoint.
// Partition files stay on disk as plain JSON; the ledger only tracks runs.
package domain

import "time"

// ReportRun records one report-generation attempt for a single partition.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Period: canonical partition stem (messages_YYYYMM_DD-YYYYMM_DD).
//   - File: absolute or data-dir-relative path of the rendered spreadsheet.
//   - Users / Messages: how many sheets and rows the run produced.
//   - Uploaded: whether the upload collaborator reported success.
//   - Error: non-empty when the partition was skipped (corrupt JSON, write
//     failure); the run row is still recorded so batch history stays complete.
type ReportRun struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	Period    string    `json:"period"   gorm:"type:varchar(64);not null;index:idx_run_period"`
	File      string    `json:"file"     gorm:"type:varchar(255);not null"`
	Users     int       `json:"users"    gorm:"not null"`
	Messages  int       `json:"messages" gorm:"not null"`
	Uploaded  bool      `json:"uploaded" gorm:"not null;default:false"`
	Error     string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for ReportRun.
func (ReportRun) TableName() string { return "report_runs" }

// Idempotency maps an Idempotency-Key from the report trigger endpoint to the
// run it produced, so client retries replay the recorded result instead of
// rebuilding the spreadsheet. Message ingestion is deliberately NOT covered:
// duplicate webhook deliveries are stored verbatim.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idem_key"`
	RunID     string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"index"`
}

// TableName returns the database table name for Idempotency.
func (Idempotency) TableName() string { return "idempotency" }
