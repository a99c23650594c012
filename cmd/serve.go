package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-attendance-backend/internal/config"
	httpapi "github.com/tbourn/go-attendance-backend/internal/http"
	"github.com/tbourn/go-attendance-backend/internal/observability"
	"github.com/tbourn/go-attendance-backend/internal/repo"
	"github.com/tbourn/go-attendance-backend/internal/store"
	"github.com/tbourn/go-attendance-backend/internal/sysutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sysutil.SetupLogger(cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return err
	}

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	st := store.New(cfg.DataDir)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, st, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("data_dir", cfg.DataDir).
			Str("timezone", cfg.Timezone).
			Str("classifier", cfg.Classifier.Mode).
			Msg("attendance server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}
