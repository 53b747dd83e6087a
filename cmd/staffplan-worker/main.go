package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"staffplan/internal/backend"
	"staffplan/internal/cli"
	"staffplan/internal/log"
	"staffplan/internal/services"
	gsheet "staffplan/internal/sheets/google"
	"staffplan/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.ExportEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the report worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting staffplan-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err.Error())
		}
	}()

	sheets, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	processor := services.NewExportProcessor(result.Service, sheets, services.NewReports(nil), services.ExportProcessorConfig{
		Interval:   cfg.ExportInterval,
		IncludeVAT: cfg.ReportIncludeVAT,
	})
	reportWorker := worker.NewReportWorker(processor)

	if err := reportWorker.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err.Error())
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", log.FieldError, err.Error())
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if result.Publisher != nil {
		g.Go(func() error {
			err := result.Publisher.ConsumeStateSaved(gctx, reportWorker.HandleStateSaved)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("AMQP not available, exporting on the timer only")
	}
	g.Go(func() error {
		<-gctx.Done()
		return cli.RunShutdown(logger, shutdownTimeout, processor.Stop)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
}
