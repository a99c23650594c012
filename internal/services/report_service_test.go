package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/period"
	"github.com/tbourn/go-attendance-backend/internal/repo"
	"github.com/tbourn/go-attendance-backend/internal/store"
)

func newLedger(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedPartition(t *testing.T, st *store.Store, p period.Period) {
	t.Helper()
	msgs := []domain.RawMessage{
		{Text: "業務開始", Username: "alice", ReceivedAt: p.Start.Add(9 * time.Hour)},
		{Text: "業務終了", Username: "alice", ReceivedAt: p.Start.Add(18 * time.Hour)},
	}
	for _, m := range msgs {
		if err := st.Append(context.Background(), p, m); err != nil {
			t.Fatal(err)
		}
	}
}

type fakeUploader struct {
	calls int
	path  string
	fail  bool
}

func (f *fakeUploader) Upload(_ context.Context, path string, _ period.Period) (bool, error) {
	f.calls++
	f.path = path
	if f.fail {
		return false, errors.New("upload refused")
	}
	return true, nil
}

func TestRunPeriod_GeneratesWorkbookAndLedgerRow(t *testing.T) {
	st := store.New(t.TempDir())
	p := period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	seedPartition(t, st, p)

	svc := &ReportService{
		Store:  st,
		OutDir: filepath.Join(t.TempDir(), "reports"),
		DB:     newLedger(t),
	}
	run, err := svc.RunPeriod(context.Background(), p)
	if err != nil {
		t.Fatalf("RunPeriod: %v", err)
	}
	if run.ID == "" || run.Period != p.Stem() || run.Users != 1 || run.Messages != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, err := os.Stat(run.File); err != nil {
		t.Fatalf("workbook missing: %v", err)
	}

	total, err := repo.CountReportRuns(context.Background(), svc.DB)
	if err != nil || total != 1 {
		t.Fatalf("ledger rows = %d, %v", total, err)
	}
}

func TestRunPeriod_MissingPartition(t *testing.T) {
	svc := &ReportService{Store: store.New(t.TempDir()), OutDir: t.TempDir()}
	p := period.For(time.Now())
	if _, err := svc.RunPeriod(context.Background(), p); !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("err = %v, want ErrPeriodNotFound", err)
	}
}

func TestRunPeriod_UploadsAndMarksRun(t *testing.T) {
	st := store.New(t.TempDir())
	p := period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	seedPartition(t, st, p)

	up := &fakeUploader{}
	svc := &ReportService{
		Store:    st,
		OutDir:   t.TempDir(),
		DB:       newLedger(t),
		Uploader: up,
	}
	run, err := svc.RunPeriod(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if up.calls != 1 || up.path != run.File {
		t.Fatalf("uploader calls = %d path = %q", up.calls, up.path)
	}
	if !run.Uploaded {
		t.Fatal("run not marked uploaded")
	}

	var got domain.ReportRun
	if err := svc.DB.First(&got, "id = ?", run.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !got.Uploaded {
		t.Fatal("ledger row not marked uploaded")
	}
}

func TestRunPeriod_UploadFailureIsNotFatal(t *testing.T) {
	st := store.New(t.TempDir())
	p := period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	seedPartition(t, st, p)

	svc := &ReportService{
		Store:    st,
		OutDir:   t.TempDir(),
		DB:       newLedger(t),
		Uploader: &fakeUploader{fail: true},
	}
	run, err := svc.RunPeriod(context.Background(), p)
	if err != nil {
		t.Fatalf("RunPeriod must succeed despite upload failure: %v", err)
	}
	if run.Uploaded {
		t.Fatal("failed upload must not mark the run")
	}
}

func TestRunPeriod_WithoutLedger(t *testing.T) {
	st := store.New(t.TempDir())
	p := period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	seedPartition(t, st, p)

	svc := &ReportService{Store: st, OutDir: t.TempDir()}
	run, err := svc.RunPeriod(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if run.Period != p.Stem() || run.Messages != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestRunAll_IsolatesCorruptPartitions(t *testing.T) {
	dir := t.TempDir()
	st := store.New(dir)

	good := period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	seedPartition(t, st, good)

	bad := period.For(time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC))
	if err := os.WriteFile(filepath.Join(dir, bad.JSONName()), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := &ReportService{Store: st, OutDir: t.TempDir(), DB: newLedger(t)}
	runs, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(runs) != 1 || runs[0].Period != good.Stem() {
		t.Fatalf("runs = %+v, want only the good period", runs)
	}

	// The failed run is still visible in the ledger.
	rows, err := repo.ListReportRunsPage(context.Background(), svc.DB, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	var failed bool
	for _, r := range rows {
		if r.Period == bad.Stem() && r.Error != "" {
			failed = true
		}
	}
	if !failed {
		t.Fatalf("corrupt partition run not recorded: %+v", rows)
	}
}

func TestListRuns_Pagination(t *testing.T) {
	svc := &ReportService{DB: newLedger(t)}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := repo.CreateReportRun(ctx, svc.DB, fmt.Sprintf("stem-%d", i), "f.xlsx", 1, 1, ""); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := svc.ListRuns(ctx, 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("ListRuns = %d items, total %d, %v", len(items), total, err)
	}
	// Out-of-range values fall back to defaults instead of failing.
	if _, _, err := svc.ListRuns(ctx, 0, 0); err != nil {
		t.Fatal(err)
	}
}

func TestResolve(t *testing.T) {
	svc := &ReportService{}
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	p, err := svc.Resolve("", now)
	if err != nil || p != period.For(now) {
		t.Fatalf("Resolve empty = %v, %v", p, err)
	}

	want := period.For(now)
	p, err = svc.Resolve(want.Stem(), now)
	if err != nil || p != want {
		t.Fatalf("Resolve stem = %v, %v", p, err)
	}

	if _, err := svc.Resolve("garbage", now); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("err = %v, want ErrInvalidPeriod", err)
	}
}

func TestResolveUsesConfiguredZone(t *testing.T) {
	svc := &ReportService{Loc: jst}

	// 20:00 UTC on the 10th is already 05:00 on the 11th in JST, so the
	// default period must match where the webhook is currently storing.
	now := time.Date(2024, time.March, 10, 20, 0, 0, 0, time.UTC)
	p, err := svc.Resolve("", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := period.For(now.In(jst)); p != want {
		t.Fatalf("resolved %s, want %s", p.Stem(), want.Stem())
	}
	if p.Stem() != "messages_202403_11-202404_10" {
		t.Fatalf("stem = %s", p.Stem())
	}

	// An explicit stem is taken literally regardless of the zone.
	p, err = svc.Resolve("messages_202402_11-202403_10", now)
	if err != nil || p.Stem() != "messages_202402_11-202403_10" {
		t.Fatalf("Resolve stem = %v, %v", p, err)
	}
}
