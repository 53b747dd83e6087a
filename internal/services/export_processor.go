package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"staffplan/internal/calendar"
	"staffplan/internal/state"
	"staffplan/internal/store"
)

// SnapshotSource supplies the current state and its revision.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (*state.Snapshot, int64, error)
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often the reports are re-exported (default: 1h)
	Interval time.Duration

	// IncludeVAT selects the expense basis of the finance report (default: true)
	IncludeVAT bool
}

func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		Interval:   time.Hour,
		IncludeVAT: true,
	}
}

// ExportProcessor exports the current year's reports on a timer and on
// demand. Fact hours and the year follow the clock, so an export is keyed
// by revision and day: the same revision is skipped on the day it was
// exported unless forced, and exported again once the day changes.
type ExportProcessor struct {
	source   SnapshotSource
	exporter store.ReportExporter
	reports  *Reports
	config   ExportProcessorConfig

	// serialises exports and guards the last export key
	exportMu     sync.Mutex
	lastRevision int64
	lastDay      string
	exported     bool

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(source SnapshotSource, exporter store.ReportExporter, reports *Reports, config ExportProcessorConfig) *ExportProcessor {
	if reports == nil {
		reports = NewReports(nil)
	}
	return &ExportProcessor{
		source:   source,
		exporter: exporter,
		reports:  reports,
		config:   config,
	}
}

// Start begins the export loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("export processor is already running")
	}
	if p.config.Interval <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("invalid export interval %v", p.config.Interval)
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"interval", p.config.Interval,
		"include_vat", p.config.IncludeVAT)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// export immediately on startup
	p.exportLogged(ctx, true)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.exportLogged(ctx, false)
		}
	}
}

func (p *ExportProcessor) exportLogged(ctx context.Context, force bool) {
	if _, err := p.Export(ctx, force); err != nil {
		slog.ErrorContext(ctx, "Report export failed", "error", err)
	}
}

// Export builds the current year's reports and hands them to the exporter.
// It reports whether an export happened.
func (p *ExportProcessor) Export(ctx context.Context, force bool) (bool, error) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()

	snap, revision, err := p.source.LoadSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	day := calendar.FormatISO(p.reports.Today())
	if !force && p.exported && revision == p.lastRevision && day == p.lastDay {
		slog.DebugContext(ctx, "Reports already exported", "revision", revision, "day", day)
		return false, nil
	}

	year := p.reports.CurrentYear()
	fin := p.reports.Finance(snap, year, p.config.IncludeVAT)
	wo := p.reports.WriteOffs(snap, year)

	if err := p.exporter.ExportReports(ctx, fin, wo); err != nil {
		return false, fmt.Errorf("export reports: %w", err)
	}

	p.lastRevision = revision
	p.lastDay = day
	p.exported = true

	slog.InfoContext(ctx, "Reports exported",
		"year", year,
		"day", day,
		"revision", revision,
		"projects", len(fin.Projects),
		"people", len(wo.People))

	return true, nil
}

// ExportRevision exports unless revision is older than the last exported
// one. The last exported revision itself goes through the day check of
// Export.
func (p *ExportProcessor) ExportRevision(ctx context.Context, revision int64) (bool, error) {
	p.exportMu.Lock()
	stale := p.exported && revision < p.lastRevision
	p.exportMu.Unlock()
	if stale {
		slog.DebugContext(ctx, "Skipping stale revision", "revision", revision)
		return false, nil
	}
	return p.Export(ctx, false)
}

// LastRevision returns the last exported revision and whether any export
// happened yet.
func (p *ExportProcessor) LastRevision() (int64, bool) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()
	return p.lastRevision, p.exported
}
