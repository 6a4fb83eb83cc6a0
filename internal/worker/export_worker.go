// Package worker mirrors committed ledger records to the spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"paydeck/internal/amqp"
	"paydeck/internal/export"
	"paydeck/internal/storage"
)

// ExportStore is the storage surface the worker needs: fetching rows to
// mirror and flagging the outcome. *storage.SQLiteStore satisfies it.
type ExportStore interface {
	GetPendingExports(ctx context.Context, limit int) ([]storage.PendingExport, error)
	GetExportRow(ctx context.Context, id string) (storage.ExportRow, error)
	MarkExported(ctx context.Context, id string) error
	MarkExportError(ctx context.Context, id string) error
}

// ExportWorker consumes mutation events and appends the referenced
// records to the spreadsheet. Deletes and updates are skipped: the
// sheet is an append-only journal of what entered the ledger, not a
// live replica.
type ExportWorker struct {
	store     ExportStore
	sheet     export.RowAppender
	batchSize int
}

func NewExportWorker(store ExportStore, sheet export.RowAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		sheet:     sheet,
		batchSize: batchSize,
	}
}

// HandleMutation processes a single mutation event from AMQP.
func (w *ExportWorker) HandleMutation(ctx context.Context, event *amqp.MutationEvent) error {
	if event.Op != amqp.OpCreated {
		return nil
	}

	slog.InfoContext(ctx, "Processing export event",
		"record_id", event.RecordID,
		"record_kind", event.RecordKind)

	row, err := w.store.GetExportRow(ctx, event.RecordID)
	if err != nil {
		return fmt.Errorf("get export row: %w", err)
	}

	return w.exportRow(ctx, row)
}

// ProcessPending mirrors records whose export event was lost. This is
// the backstop behind the AMQP path.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize)
}

// StartupCheck drains the pending backlog at worker startup, for
// recovery after downtime or missed events.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize*5)
}

func (w *ExportWorker) processPendingBatch(ctx context.Context, limit int) error {
	pending, err := w.store.GetPendingExports(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	exported := 0
	failed := 0
	for _, p := range pending {
		row, err := w.store.GetExportRow(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load export row", "record_id", p.ID, "error", err)
			if markErr := w.store.MarkExportError(ctx, p.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark export error", "record_id", p.ID, "error", markErr)
			}
			failed++
			continue
		}

		if err := w.exportRow(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to export record", "record_id", p.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Pending export pass completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ExportWorker) exportRow(ctx context.Context, row storage.ExportRow) error {
	ref, err := w.sheet.Append(ctx, row)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, row.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "record_id", row.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkExported(ctx, row.ID); err != nil {
		// The append itself worked; the row will be retried as pending.
		slog.ErrorContext(ctx, "Failed to mark as exported", "record_id", row.ID, "error", err)
	}

	slog.InfoContext(ctx, "Record exported",
		"record_id", row.ID,
		"record_kind", row.Kind,
		"sheets_ref", ref)
	return nil
}
