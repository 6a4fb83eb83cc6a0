// Package export defines the spreadsheet mirror boundary.
package export

import (
	"context"

	"paydeck/internal/storage"
)

// RowAppender mirrors one committed ledger record to an external sheet,
// returning an opaque reference to where it landed.
type RowAppender interface {
	Append(ctx context.Context, row storage.ExportRow) (string, error)
}
