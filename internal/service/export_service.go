package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/models"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/export"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Path         string
	Format       export.Format
	Rows         int
}

// ExportService renders a loaded request list to CSV or PDF on disk.
type ExportService struct {
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{storage: storage, csv: csv, pdf: pdf, logger: logger, location: loc, now: time.Now}
}

// Export writes requests in the given format and returns where it landed.
func (s *ExportService) Export(ctx context.Context, requests []models.PassRequest, format export.Format) (*ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	generated := s.now().In(s.location)
	data := PassRequestDataset(requests, s.location)
	data.Subtitle = fmt.Sprintf("Generated %s, %d requests", generated.Format("2 January 2006 15:04"), len(requests))

	var (
		payload []byte
		err     error
	)
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(data)
	case export.FormatPDF:
		payload, err = s.pdf.Render(data)
	default:
		return nil, appErrors.Validation(fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "render export")
	}

	name := fmt.Sprintf("pass-requests-%s%s", generated.Format("20060102-150405"), format.Extension())
	rel, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, 0, "save export")
	}

	s.logger.Info("export generated", zap.String("path", rel), zap.String("format", string(format)), zap.Int("rows", len(requests)))
	return &ExportResult{RelativePath: rel, Path: s.storage.Path(rel), Format: format, Rows: len(requests)}, nil
}

// PassRequestDataset flattens requests into table rows.
func PassRequestDataset(requests []models.PassRequest, loc *time.Location) export.Dataset {
	if loc == nil {
		loc = time.Local
	}
	headers := []string{"ID", "Student", "Group", "Period", "Status", "Extensions", "Files", "Created", "Message"}
	data := export.Dataset{
		Title:   "Pass requests",
		Headers: headers,
		Widths:  []float64{2.2, 2.4, 0.9, 3, 1.1, 1.1, 0.7, 1.6, 2.5},
		Rows:    make([]map[string]string, 0, len(requests)),
	}
	for _, r := range requests {
		group := ""
		if n := r.User.GroupNumber(); n > 0 {
			group = strconv.Itoa(n)
		}
		message := ""
		if r.Message != nil {
			message = *r.Message
		}
		created := ""
		if !r.CreateTimestamp.IsZero() {
			created = r.CreateTimestamp.In(loc).Format("2006-01-02 15:04")
		}
		data.Rows = append(data.Rows, map[string]string{
			"ID":         r.ID,
			"Student":    r.User.FullName,
			"Group":      group,
			"Period":     models.FormatPeriod(r.DateStart.In(loc), r.DateEnd.In(loc)),
			"Status":     r.Acceptance.String(),
			"Extensions": extensionSummary(r.ExtensionRequests),
			"Files":      strconv.Itoa(len(r.Files)),
			"Created":    created,
			"Message":    message,
		})
	}
	return data
}

func extensionSummary(exts []models.ExtensionRequest) string {
	if len(exts) == 0 {
		return ""
	}
	var pending int
	for _, e := range exts {
		if e.Acceptance.IsPending() {
			pending++
		}
	}
	if pending == 0 {
		return strconv.Itoa(len(exts))
	}
	return fmt.Sprintf("%d (%d pending)", len(exts), pending)
}
