package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-attendance-backend/internal/config"
	httpapi "github.com/tbourn/go-attendance-backend/internal/http"
	"github.com/tbourn/go-attendance-backend/internal/repo"
	"github.com/tbourn/go-attendance-backend/internal/services"
	"github.com/tbourn/go-attendance-backend/internal/store"
	"github.com/tbourn/go-attendance-backend/internal/sysutil"
	"github.com/tbourn/go-attendance-backend/internal/upload"
)

var (
	reportPeriod   string
	reportAll      bool
	reportNoLedger bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate attendance workbooks from stored partitions",
	Long: `report renders xlsx workbooks without starting the server.
With no flags it processes the billing period containing the current time.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportPeriod, "period", "", "Partition stem to process (default: current period)")
	reportCmd.Flags().BoolVar(&reportAll, "all", false, "Process every stored partition")
	reportCmd.Flags().BoolVar(&reportNoLedger, "no-ledger", false, "Skip recording runs in the SQLite ledger")
}

func runReport(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sysutil.SetupLogger(cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)

	svc := &services.ReportService{
		Store:       store.New(cfg.DataDir),
		OutDir:      cfg.ReportDir,
		Loc:         cfg.Location(),
		Classifier:  httpapi.NewClassifier(cfg),
		Concurrency: cfg.Classifier.Concurrency,
	}
	if !reportNoLedger {
		db, err := repo.OpenSQLite(cfg.DBPath, false)
		if err != nil {
			return err
		}
		if err := repo.AutoMigrate(db); err != nil {
			return err
		}
		svc.DB = db
	}
	if cfg.Upload.URL != "" {
		svc.Uploader = &upload.Client{URL: cfg.Upload.URL, Token: cfg.Upload.Token}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	if reportAll {
		runs, err := svc.RunAll(ctx)
		if err != nil {
			return err
		}
		for _, run := range runs {
			printRun(run.Period, run.File, run.Users, run.Messages, run.Error)
		}
		return nil
	}

	p, err := svc.Resolve(reportPeriod, time.Now())
	if err != nil {
		return err
	}
	run, err := svc.RunPeriod(ctx, p)
	if err != nil {
		return err
	}
	printRun(run.Period, run.File, run.Users, run.Messages, run.Error)
	return nil
}

func printRun(periodStem, file string, users, messages int, runErr string) {
	if runErr != "" {
		fmt.Printf("%s: FAILED (%s)\n", periodStem, runErr)
		return
	}
	fmt.Printf("%s: %s (%d users, %d messages)\n", periodStem, file, users, messages)
}
