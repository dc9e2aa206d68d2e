package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/fleetops/tms-calendar-api/internal/models"
	appErrors "github.com/fleetops/tms-calendar-api/pkg/errors"
	"github.com/fleetops/tms-calendar-api/pkg/export"
)

// ExportFormat selects the rendering of a window export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatICS ExportFormat = "ics"
)

// ParseExportFormat rejects unknown formats.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(raw) {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatICS:
		return ExportFormat(raw), nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export format %q", raw))
	}
}

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatICS:
		return "text/calendar"
	default:
		return "text/csv"
	}
}

// ExportResult is a rendered schedule window.
type ExportResult struct {
	ContentType string
	Filename    string
	Body        []byte
}

// ExportService renders the events of a calendar window as CSV, PDF or an
// iCalendar feed.
type ExportService struct {
	store  eventLister
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(store eventLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:  store,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Export renders the window for (focus, mode) in the requested format.
func (s *ExportService) Export(ctx context.Context, state models.ViewState, format ExportFormat) (*ExportResult, error) {
	start, end := WindowFor(state.Focus, state.Mode)
	filter := state.Filter
	filter.From = &start
	queryEnd := end.Add(-time.Nanosecond)
	filter.To = &queryEnd

	events, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to query events for export")
	}

	name := fmt.Sprintf("schedule-%s-%s", state.Mode, start.Format("2006-01-02"))
	switch format {
	case ExportFormatICS:
		body, err := renderICS(events)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ics")
		}
		return &ExportResult{ContentType: format.ContentType(), Filename: name + ".ics", Body: body}, nil
	case ExportFormatPDF:
		title := fmt.Sprintf("Dispatch schedule %s - %s", start.Format("02 Jan 2006"), end.AddDate(0, 0, -1).Format("02 Jan 2006"))
		body, err := s.pdf.Render(buildSheet(events), title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{ContentType: format.ContentType(), Filename: name + ".pdf", Body: body}, nil
	default:
		body, err := s.csv.Render(buildSheet(events))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{ContentType: format.ContentType(), Filename: name + ".csv", Body: body}, nil
	}
}

var sheetHeaders = []string{"Start", "End", "Client", "Driver", "Vehicle", "Status", "Priority", "Pickup", "Delivery"}

func buildSheet(events []models.Event) export.Sheet {
	rows := make([]map[string]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, map[string]string{
			"Start":    ev.StartAt.Format("2006-01-02 15:04"),
			"End":      ev.EndAt.Format("2006-01-02 15:04"),
			"Client":   ev.ClientName,
			"Driver":   deref(ev.DriverName),
			"Vehicle":  deref(ev.VehicleName),
			"Status":   string(ev.Status),
			"Priority": string(ev.Priority),
			"Pickup":   deref(ev.PickupLocation),
			"Delivery": deref(ev.DeliveryLocation),
		})
	}
	return export.Sheet{Headers: sheetHeaders, Rows: rows}
}

func renderICS(events []models.Event) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//fleetops//tms-calendar-api//EN")

	for _, ev := range events {
		vevent := cal.AddEvent(ev.ID)
		vevent.SetCreatedTime(ev.CreatedAt)
		vevent.SetModifiedAt(ev.UpdatedAt)
		if ev.AllDay {
			vevent.SetAllDayStartAt(ev.StartAt)
			vevent.SetAllDayEndAt(ev.EndAt)
		} else {
			vevent.SetStartAt(ev.StartAt)
			vevent.SetEndAt(ev.EndAt)
		}
		vevent.SetSummary(ev.Title)
		if ev.PickupLocation != nil {
			vevent.SetLocation(*ev.PickupLocation)
		}
		vevent.SetDescription(fmt.Sprintf("client=%s status=%s priority=%s", ev.ClientName, ev.Status, ev.Priority))
		if ev.RRule != nil && *ev.RRule != "" {
			vevent.AddRrule(*ev.RRule)
		}
	}

	buf := &bytes.Buffer{}
	if err := cal.SerializeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
