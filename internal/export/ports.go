// Package export defines the port for pushing computed reports to an
// external destination such as a spreadsheet.
package export

import (
	"context"

	"pfm/internal/report"
)

// Ports for outbound adapters.
type (
	// BundleWriter exports a user's full report bundle for one year and
	// returns a destination reference (sheet range, file path, ...).
	BundleWriter interface {
		ExportBundle(ctx context.Context, userID string, year int, b *report.Bundle) (ref string, err error)
	}
)
