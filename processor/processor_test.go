package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/notifier"
	"github.com/aluiziolira/sheethook/sheet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	validURL  = "https://www.amazon.com/dp/B08N5WRWNW"
	validLink = "https://amzn.to/3xyz"
)

type fakeSender struct {
	err   error
	notes []models.Notification
}

func (f *fakeSender) Notify(_ context.Context, note models.Notification) error {
	f.notes = append(f.notes, note)
	return f.err
}

type fixture struct {
	cfg    *config.Config
	tab    *sheet.Tab
	sender *fakeSender
	proc   *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WebhookURL = "http://workflow.test/hook"
	cfg.SheetID = "tracking"

	wb := sheet.New()
	t.Cleanup(func() { wb.Close() })
	tab, err := wb.Tab(wb.Sheets()[0])
	if err != nil {
		t.Fatalf("tab: %v", err)
	}

	sender := &fakeSender{}
	proc := New(cfg, sender, NewMetrics(prometheus.NewRegistry()))
	proc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return &fixture{cfg: cfg, tab: tab, sender: sender, proc: proc}
}

func (f *fixture) setInputs(t *testing.T, row int, url, link string) {
	t.Helper()
	if err := f.tab.SetCell(row, f.cfg.Columns.ProductURL, url); err != nil {
		t.Fatalf("set url: %v", err)
	}
	if err := f.tab.SetCell(row, f.cfg.Columns.AffiliateLink, link); err != nil {
		t.Fatalf("set link: %v", err)
	}
}

func (f *fixture) cell(t *testing.T, row, col int) string {
	t.Helper()
	v, err := f.tab.Cell(row, col)
	if err != nil {
		t.Fatalf("cell(%d,%d): %v", row, col, err)
	}
	return v
}

func TestHandleEditSuccess(t *testing.T) {
	f := newFixture(t)
	f.setInputs(t, 2, validURL, validLink)

	status, err := f.proc.HandleEdit(context.Background(), f.tab, 2)
	if err != nil {
		t.Fatalf("handle edit: %v", err)
	}
	if status != models.StatusProcessing {
		t.Fatalf("status = %q, want processing", status)
	}

	cols := f.cfg.Columns
	if got := f.cell(t, 2, cols.Status); got != "Processing" {
		t.Fatalf("status cell = %q", got)
	}
	if got := f.cell(t, 2, cols.Notes); got != NoteSent {
		t.Fatalf("notes = %q", got)
	}
	if got := f.cell(t, 2, cols.Timestamp); got != "2026-10-18T09:00:00.000Z" {
		t.Fatalf("timestamp = %q", got)
	}
	if fill, _ := f.tab.Fill(2, cols.Width()); fill != ColorProcessing {
		t.Fatalf("fill = %q, want %s", fill, ColorProcessing)
	}

	if len(f.sender.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.sender.notes))
	}
	want := models.Notification{
		ProductURL:    validURL,
		AffiliateLink: validLink,
		RowNumber:     2,
		Timestamp:     "2026-10-18T09:00:00.000Z",
		SheetID:       "tracking",
	}
	if f.sender.notes[0] != want {
		t.Fatalf("notification = %+v", f.sender.notes[0])
	}
	if v := testutil.ToFloat64(f.proc.metrics.TransitionsTotal.WithLabelValues("pending")); v != 1 {
		t.Fatalf("pending transitions = %v, want 1", v)
	}
}

func TestHandleEditKeepsExistingTimestamp(t *testing.T) {
	f := newFixture(t)
	f.setInputs(t, 3, validURL, validLink)
	if err := f.tab.SetCell(3, f.cfg.Columns.Timestamp, "2026-01-01T00:00:00.000Z"); err != nil {
		t.Fatalf("set timestamp: %v", err)
	}

	if _, err := f.proc.HandleEdit(context.Background(), f.tab, 3); err != nil {
		t.Fatalf("handle edit: %v", err)
	}
	if got := f.cell(t, 3, f.cfg.Columns.Timestamp); got != "2026-01-01T00:00:00.000Z" {
		t.Fatalf("timestamp overwritten: %q", got)
	}
}

func TestHandleEditNoop(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		link   string
		status string
	}{
		{name: "missing link", url: validURL},
		{name: "missing url", link: validLink},
		{name: "blank url", url: "   ", link: validLink},
		{name: "status set", url: validURL, link: validLink, status: "Completed"},
		{name: "error status", url: validURL, link: validLink, status: "Error"},
		{name: "unknown status", url: validURL, link: validLink, status: "manual"},
		{name: "whitespace status", url: validURL, link: validLink, status: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setInputs(t, 4, tt.url, tt.link)
			cols := f.cfg.Columns
			if err := f.tab.SetCell(4, cols.Status, tt.status); err != nil {
				t.Fatalf("set status: %v", err)
			}
			if err := f.tab.SetCell(4, cols.Notes, "untouched"); err != nil {
				t.Fatalf("set notes: %v", err)
			}

			for i := 0; i < 2; i++ {
				status, err := f.proc.HandleEdit(context.Background(), f.tab, 4)
				if err != nil {
					t.Fatalf("handle edit: %v", err)
				}
				if status != models.StatusNone {
					t.Fatalf("status = %q, want no-op", status)
				}
			}
			if got := f.cell(t, 4, cols.Status); got != tt.status {
				t.Fatalf("status changed to %q", got)
			}
			if got := f.cell(t, 4, cols.Notes); got != "untouched" {
				t.Fatalf("notes changed to %q", got)
			}
			if len(f.sender.notes) != 0 {
				t.Fatalf("no notification expected")
			}
		})
	}
}

func TestHandleEditInvalidInputs(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		link  string
		notes string
	}{
		{name: "bad url", url: "https://example.com/dp/X", link: validLink, notes: NoteInvalidProductURL},
		{name: "url without dp", url: "https://www.amazon.com/gp/product/X", link: validLink, notes: NoteInvalidProductURL},
		{name: "bad link", url: validURL, link: "https://amazon.com/gp/product/X", notes: NoteInvalidAffiliate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setInputs(t, 2, tt.url, tt.link)

			status, err := f.proc.HandleEdit(context.Background(), f.tab, 2)
			if err != nil {
				t.Fatalf("handle edit: %v", err)
			}
			if status != models.StatusError {
				t.Fatalf("status = %q, want error", status)
			}
			cols := f.cfg.Columns
			if got := f.cell(t, 2, cols.Status); got != "Error" {
				t.Fatalf("status cell = %q", got)
			}
			if got := f.cell(t, 2, cols.Notes); got != tt.notes {
				t.Fatalf("notes = %q, want %q", got, tt.notes)
			}
			if got := f.cell(t, 2, cols.Timestamp); got != "" {
				t.Fatalf("timestamp should stay empty, got %q", got)
			}
			if fill, _ := f.tab.Fill(2, 1); fill != ColorError {
				t.Fatalf("fill = %q", fill)
			}
			if len(f.sender.notes) != 0 {
				t.Fatalf("invalid rows must not be sent")
			}
		})
	}
}

func TestHandleEditDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = notifier.ErrStatus{Code: 500}
	f.setInputs(t, 2, validURL, validLink)

	status, err := f.proc.HandleEdit(context.Background(), f.tab, 2)
	if err != nil {
		t.Fatalf("handle edit: %v", err)
	}
	if status != models.StatusError {
		t.Fatalf("status = %q, want error", status)
	}
	if got := f.cell(t, 2, f.cfg.Columns.Status); got != "Error" {
		t.Fatalf("status cell = %q", got)
	}
	notes := f.cell(t, 2, f.cfg.Columns.Notes)
	if notes != "webhook returned HTTP 500: Internal Server Error" {
		t.Fatalf("notes = %q", notes)
	}
	if got := f.cell(t, 2, f.cfg.Columns.Timestamp); got == "" {
		t.Fatalf("timestamp should be set once validation passed")
	}

	// The row is terminal: another edit does nothing.
	status, err = f.proc.HandleEdit(context.Background(), f.tab, 2)
	if err != nil || status != models.StatusNone {
		t.Fatalf("second edit = %q, %v", status, err)
	}
	if len(f.sender.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.sender.notes))
	}
}

func TestEligibleTreatsBlankStatusAsSet(t *testing.T) {
	f := newFixture(t)
	f.cfg.EligibleStatuses = []string{"Error"}
	f.proc = New(f.cfg, f.sender, nil)

	tests := []struct {
		status string
		want   bool
	}{
		{status: "", want: true},
		{status: " ", want: false},
		{status: "\t", want: false},
		{status: " Error ", want: true},
		{status: "Completed", want: false},
	}
	for _, tt := range tests {
		if got := f.proc.Eligible(validURL, validLink, tt.status); got != tt.want {
			t.Fatalf("Eligible(status=%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestHandleEditEligibleStatuses(t *testing.T) {
	f := newFixture(t)
	f.cfg.EligibleStatuses = []string{"Error"}
	f.proc = New(f.cfg, f.sender, nil)

	f.setInputs(t, 2, validURL, validLink)
	if err := f.tab.SetCell(2, f.cfg.Columns.Status, "error"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	status, err := f.proc.HandleEdit(context.Background(), f.tab, 2)
	if err != nil {
		t.Fatalf("handle edit: %v", err)
	}
	if status != models.StatusProcessing {
		t.Fatalf("status = %q, want processing", status)
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	f := newFixture(t)
	cols := f.cfg.Columns
	if err := f.tab.SetCell(5, cols.ProductPrice, "stale"); err != nil {
		t.Fatalf("set: %v", err)
	}

	result := models.CallbackResult{RowNumber: 5, Success: true, ArticleTitle: "T"}
	for i := 0; i < 2; i++ {
		status, err := f.proc.HandleCallback(context.Background(), f.tab, result)
		if err != nil {
			t.Fatalf("callback: %v", err)
		}
		if status != models.StatusCompleted {
			t.Fatalf("status = %q", status)
		}
	}

	if got := f.cell(t, 5, cols.Status); got != "Completed" {
		t.Fatalf("status cell = %q", got)
	}
	if got := f.cell(t, 5, cols.Notes); got != NoteCompleted {
		t.Fatalf("notes = %q", got)
	}
	if got := f.cell(t, 5, cols.ArticleTitle); got != "T" {
		t.Fatalf("article title = %q", got)
	}
	for _, col := range []int{cols.ArticleURL, cols.ProductTitle, cols.ProductPrice, cols.ProductRating} {
		if got := f.cell(t, 5, col); got != "" {
			t.Fatalf("column %d = %q, want empty", col, got)
		}
	}
	if fill, _ := f.tab.Fill(5, 1); fill != ColorCompleted {
		t.Fatalf("fill = %q", fill)
	}
}

func TestHandleCallbackFailure(t *testing.T) {
	tests := []struct {
		name  string
		err   models.Text
		notes string
	}{
		{name: "reported", err: "scrape failed", notes: "scrape failed"},
		{name: "missing", err: "", notes: NoteUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.tab.SetCell(5, f.cfg.Columns.Status, "Processing"); err != nil {
				t.Fatalf("set: %v", err)
			}

			status, err := f.proc.HandleCallback(context.Background(), f.tab, models.CallbackResult{RowNumber: 5, Error: tt.err})
			if err != nil {
				t.Fatalf("callback: %v", err)
			}
			if status != models.StatusError {
				t.Fatalf("status = %q", status)
			}
			if got := f.cell(t, 5, f.cfg.Columns.Status); got != "Error" {
				t.Fatalf("status cell = %q", got)
			}
			if got := f.cell(t, 5, f.cfg.Columns.Notes); got != tt.notes {
				t.Fatalf("notes = %q, want %q", got, tt.notes)
			}
		})
	}
}

func TestRelevant(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		ev   models.EditEvent
		want bool
	}{
		{ev: models.EditEvent{Row: 2}, want: true},
		{ev: models.EditEvent{Row: 2, Sheet: "amazon_products", Column: 2}, want: true},
		{ev: models.EditEvent{Row: 2, Column: 3}, want: true},
		{ev: models.EditEvent{Row: 2, Column: 4}, want: false},
		{ev: models.EditEvent{Row: 2, Sheet: "Archive"}, want: false},
	}
	for _, tt := range tests {
		if got := f.proc.Relevant(tt.ev); got != tt.want {
			t.Fatalf("Relevant(%+v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}

func TestStatusOfAndColor(t *testing.T) {
	f := newFixture(t)
	if got := f.proc.StatusOf(" completed "); got != models.StatusCompleted {
		t.Fatalf("StatusOf = %q", got)
	}
	if got := f.proc.StatusOf("archived"); got != models.StatusNone {
		t.Fatalf("unknown label = %q", got)
	}
	if Color(models.Status("archived")) != ColorNone {
		t.Fatalf("unknown status should be neutral")
	}
}

func TestHandleEditPropagatesStoreErrors(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk gone")
	status, err := f.proc.HandleEdit(context.Background(), failingTable{err: boom}, 2)
	if !errors.Is(err, boom) || status != models.StatusNone {
		t.Fatalf("HandleEdit = %q, %v", status, err)
	}
}

type failingTable struct{ err error }

func (ft failingTable) Cell(int, int) (string, error)  { return "", ft.err }
func (ft failingTable) SetCell(int, int, any) error    { return ft.err }
func (ft failingTable) FillRow(int, int, string) error { return ft.err }
