// Package processor implements the per-row status state machine: edits move
// a row through validation and webhook delivery, callbacks settle it.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/parser"
)

// Notes written alongside each transition.
const (
	NoteInvalidProductURL = "invalid product URL"
	NoteInvalidAffiliate  = "invalid affiliate link"
	NoteReady             = "ready for processing"
	NoteSent              = "sent for processing"
	NoteCompleted         = "article generated and published successfully"
	NoteUnknownError      = "unknown processing error"
)

// Row fill colours.
const (
	ColorPending    = "FFF3CD"
	ColorProcessing = "D1ECF1"
	ColorCompleted  = "D4EDDA"
	ColorError      = "F8D7DA"
	ColorNone       = "FFFFFF"
)

// Table is the cell access the processor needs. *sheet.Tab satisfies it.
type Table interface {
	Cell(row, col int) (string, error)
	SetCell(row, col int, value any) error
	FillRow(row, width int, color string) error
}

// Sender delivers a notification to the workflow.
type Sender interface {
	Notify(ctx context.Context, note models.Notification) error
}

// Processor applies edit and callback events to rows of a Table.
type Processor struct {
	cfg      *config.Config
	sender   Sender
	metrics  *Metrics
	eligible map[string]struct{}
	now      func() time.Time
}

// New returns a processor bound to cfg and sender.
func New(cfg *config.Config, sender Sender, metrics *Metrics) *Processor {
	eligible := make(map[string]struct{}, len(cfg.EligibleStatuses))
	for _, label := range cfg.EligibleStatuses {
		if label = strings.ToLower(parser.NormalizeCell(label)); label != "" {
			eligible[label] = struct{}{}
		}
	}
	return &Processor{
		cfg:      cfg,
		sender:   sender,
		metrics:  metrics,
		eligible: eligible,
		now:      time.Now,
	}
}

// Relevant reports whether an edit event concerns the tracked sheet and
// one of the two input columns. Unset filters match.
func (p *Processor) Relevant(ev models.EditEvent) bool {
	if ev.Sheet != "" && !strings.EqualFold(ev.Sheet, p.cfg.SheetName) {
		return false
	}
	if ev.Column != 0 && ev.Column != p.cfg.Columns.ProductURL && ev.Column != p.cfg.Columns.AffiliateLink {
		return false
	}
	return true
}

// Eligible reports whether a row with these cell values should be processed:
// both inputs present and the status empty or one of the configured
// eligible labels. A status holding only whitespace counts as set.
func (p *Processor) Eligible(url, link, status string) bool {
	if parser.NormalizeCell(url) == "" || parser.NormalizeCell(link) == "" {
		return false
	}
	if status == "" {
		return true
	}
	_, ok := p.eligible[strings.ToLower(parser.NormalizeCell(status))]
	return ok
}

// HandleEdit runs the edit path for one row and returns the status the row
// ended in, or models.StatusNone when the row was left untouched. Delivery
// failures are recorded on the row, not returned.
func (p *Processor) HandleEdit(ctx context.Context, t Table, row int) (models.Status, error) {
	cols := p.cfg.Columns
	url, err := t.Cell(row, cols.ProductURL)
	if err != nil {
		return models.StatusNone, err
	}
	link, err := t.Cell(row, cols.AffiliateLink)
	if err != nil {
		return models.StatusNone, err
	}
	status, err := t.Cell(row, cols.Status)
	if err != nil {
		return models.StatusNone, err
	}

	if !p.Eligible(url, link, status) {
		reason := "status_set"
		if parser.NormalizeCell(url) == "" || parser.NormalizeCell(link) == "" {
			reason = "incomplete"
		}
		p.metrics.incSkipped(reason)
		slog.Debug("edit skipped", slog.Int("row", row), slog.String("reason", reason))
		return models.StatusNone, nil
	}

	url = parser.NormalizeCell(url)
	link = parser.NormalizeCell(link)

	if !parser.IsValidProductURL(url, p.cfg.AmazonDomains) {
		return models.StatusError, p.setStatus(t, row, models.StatusError, NoteInvalidProductURL)
	}
	if !parser.IsValidAffiliateLink(link) {
		return models.StatusError, p.setStatus(t, row, models.StatusError, NoteInvalidAffiliate)
	}

	now := p.now()
	stamp, err := t.Cell(row, cols.Timestamp)
	if err != nil {
		return models.StatusNone, err
	}
	if parser.NormalizeCell(stamp) == "" {
		if err := t.SetCell(row, cols.Timestamp, parser.FormatTimestamp(now)); err != nil {
			return models.StatusNone, err
		}
	}
	if err := p.setStatus(t, row, models.StatusPending, NoteReady); err != nil {
		return models.StatusNone, err
	}

	note := models.Notification{
		ProductURL:    url,
		AffiliateLink: link,
		RowNumber:     row,
		Timestamp:     parser.FormatTimestamp(now),
		SheetID:       p.cfg.WorkbookID(),
	}
	if err := p.sender.Notify(ctx, note); err != nil {
		return models.StatusError, p.setStatus(t, row, models.StatusError, err.Error())
	}
	return models.StatusProcessing, p.setStatus(t, row, models.StatusProcessing, NoteSent)
}

// HandleCallback applies a workflow result to its row. Any prior status may
// be overwritten; applying the same result twice yields the same row.
func (p *Processor) HandleCallback(_ context.Context, t Table, result models.CallbackResult) (models.Status, error) {
	row := result.RowNumber
	p.metrics.incCallback(result.Success)

	if !result.Success {
		msg := result.Error.String()
		if msg == "" {
			msg = NoteUnknownError
		}
		return models.StatusError, p.setStatus(t, row, models.StatusError, msg)
	}

	cols := p.cfg.Columns
	fields := []struct {
		col   int
		value models.Text
	}{
		{cols.ArticleTitle, result.ArticleTitle},
		{cols.ArticleURL, result.ArticleURL},
		{cols.ProductTitle, result.ProductTitle},
		{cols.ProductPrice, result.ProductPrice},
		{cols.ProductRating, result.ProductRating},
	}
	for _, f := range fields {
		if err := t.SetCell(row, f.col, f.value.String()); err != nil {
			return models.StatusNone, err
		}
	}
	return models.StatusCompleted, p.setStatus(t, row, models.StatusCompleted, NoteCompleted)
}

// Label is the text persisted in the status column for status.
func (p *Processor) Label(status models.Status) string {
	labels := p.cfg.Statuses
	switch status {
	case models.StatusPending:
		return labels.Pending
	case models.StatusProcessing:
		return labels.Processing
	case models.StatusCompleted:
		return labels.Completed
	case models.StatusError:
		return labels.Error
	}
	return ""
}

// StatusOf maps a status cell back to a Status. Unknown text maps to
// StatusNone.
func (p *Processor) StatusOf(label string) models.Status {
	label = parser.NormalizeCell(label)
	for _, status := range []models.Status{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusError} {
		if strings.EqualFold(label, p.Label(status)) {
			return status
		}
	}
	return models.StatusNone
}

// Color is the row fill for status.
func Color(status models.Status) string {
	switch status {
	case models.StatusPending:
		return ColorPending
	case models.StatusProcessing:
		return ColorProcessing
	case models.StatusCompleted:
		return ColorCompleted
	case models.StatusError:
		return ColorError
	}
	return ColorNone
}

// setStatus writes status and notes as one transition and repaints the row.
func (p *Processor) setStatus(t Table, row int, status models.Status, notes string) error {
	cols := p.cfg.Columns
	if err := t.SetCell(row, cols.Status, p.Label(status)); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	if err := t.SetCell(row, cols.Notes, notes); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	if err := t.FillRow(row, cols.Width(), Color(status)); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}

	p.metrics.incTransition(string(status))
	level := slog.LevelInfo
	if status == models.StatusError {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "row status changed",
		slog.Int("row", row),
		slog.String("status", p.Label(status)),
		slog.String("notes", notes),
	)
	return nil
}
