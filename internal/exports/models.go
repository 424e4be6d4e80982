package exports

import (
	"fmt"
	"strings"
	"time"
)

const (
	FormatPDF = "pdf"
	FormatCSV = "csv"

	StatusReady = "ready"
)

// CreateExportRequest is the body of POST /v1/exports
type CreateExportRequest struct {
	Format string `json:"format"` // "pdf" or "csv"
}

func (r *CreateExportRequest) Validate() error {
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	if r.Format != FormatPDF && r.Format != FormatCSV {
		return fmt.Errorf("format must be 'pdf' or 'csv'")
	}
	return nil
}

// ExportDTO is the response representation of an export
type ExportDTO struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	ItemCount   int       `json:"item_count"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      string    `json:"status"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExportsResponse struct {
	Exports []ExportDTO `json:"exports"`
}

func contentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/pdf"
}
