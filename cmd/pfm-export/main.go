// pfm-export computes a user's report bundle and writes it to a Google
// Sheets spreadsheet.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"pfm/internal/config"
	"pfm/internal/export/google"
	"pfm/internal/log"
	"pfm/internal/report"
	"pfm/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		userID = flag.String("user", "", "user id to export")
		year   = flag.Int("year", time.Now().Year(), "report year")
	)
	flag.Parse()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	if *userID == "" {
		logger.Error("missing -user flag")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for export")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	writer, err := google.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
	if err != nil {
		logger.Error("failed to initialize sheets client", log.FieldError, err)
		os.Exit(1)
	}

	// No cache: an export always reads the current ledger state.
	reports := report.NewAggregator(repo, nil, logger)
	bundle, err := reports.Full(ctx, *userID, *year)
	if err != nil {
		logger.Error("failed to compute report bundle", log.FieldError, err)
		os.Exit(1)
	}

	ref, err := writer.ExportBundle(ctx, *userID, *year, bundle)
	if err != nil {
		logger.Error("export failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("export complete", log.FieldUserID, *userID, log.FieldYear, *year, "ref", ref)
}
