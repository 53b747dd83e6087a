package worker

import (
	"context"
	"fmt"
	"log/slog"

	"staffplan/internal/amqp"
)

// RevisionExporter exports the reports of a stored revision.
type RevisionExporter interface {
	Export(ctx context.Context, force bool) (bool, error)
	ExportRevision(ctx context.Context, revision int64) (bool, error)
}

// ReportWorker re-exports the year reports whenever the shared state is
// saved.
type ReportWorker struct {
	exporter RevisionExporter
}

func NewReportWorker(exporter RevisionExporter) *ReportWorker {
	return &ReportWorker{exporter: exporter}
}

// HandleStateSaved processes a single state saved message from AMQP.
// Messages for revisions that were already exported are acknowledged
// without work, so redeliveries are harmless.
func (w *ReportWorker) HandleStateSaved(ctx context.Context, msg *amqp.StateSavedMessage) error {
	slog.InfoContext(ctx, "Processing state saved message",
		"document_id", msg.DocumentID,
		"revision", msg.Revision)

	exported, err := w.exporter.ExportRevision(ctx, msg.Revision)
	if err != nil {
		return fmt.Errorf("export revision %d: %w", msg.Revision, err)
	}
	if !exported {
		slog.DebugContext(ctx, "Revision already exported", "revision", msg.Revision)
	}
	return nil
}

// StartupExport exports the current state once at worker startup, to
// recover from messages missed while the worker was down.
func (w *ReportWorker) StartupExport(ctx context.Context) error {
	if _, err := w.exporter.Export(ctx, true); err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	slog.InfoContext(ctx, "Startup export completed")
	return nil
}
