package archive

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/sheet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T) (*Sweeper, *sheet.Workbook, *sheet.Tab) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WebhookURL = "http://workflow.test/hook"

	wb, err := sheet.OpenOrCreate(t.TempDir()+"/tracking.xlsx", cfg.SheetName)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	tab, err := wb.Tab(cfg.SheetName)
	if err != nil {
		t.Fatalf("tab: %v", err)
	}

	s := NewSweeper(cfg, prometheus.NewRegistry())
	s.now = func() time.Time { return now }
	return s, wb, tab
}

func setRows(t *testing.T, tab *sheet.Tab, rows [][]string) {
	t.Helper()
	for i, row := range rows {
		if err := tab.SetRow(i+1, row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
}

func TestSweepMovesOldCompletedRows(t *testing.T) {
	s, wb, tab := newSweeper(t)
	old := now.Add(-31 * 24 * time.Hour).Format(time.RFC3339)
	recent := now.Add(-2 * 24 * time.Hour).Format(time.RFC3339)

	setRows(t, tab, [][]string{
		{"Timestamp", "Product URL", "Affiliate Link", "Status"},
		{old, "https://www.amazon.com/dp/A000000001", "https://amzn.to/a", "Completed"},
		{recent, "https://www.amazon.com/dp/A000000002", "https://amzn.to/b", "Completed"},
		{old, "https://www.amazon.com/dp/A000000003", "https://amzn.to/c", "Error"},
		{old, "https://www.amazon.com/dp/A000000004", "https://amzn.to/d", "completed"},
		{"", "https://www.amazon.com/dp/A000000005", "https://amzn.to/e", "Completed"},
		{"someday", "https://www.amazon.com/dp/A000000006", "https://amzn.to/f", "Completed"},
	})

	result, err := s.Sweep(wb)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Archived != 2 {
		t.Fatalf("archived = %d, want 2", result.Archived)
	}
	if result.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", result.Skipped)
	}
	if result.Rows[0].Index != 2 || result.Rows[1].Index != 5 {
		t.Fatalf("archived rows = %+v", result.Rows)
	}

	remaining, err := tab.Rows(4)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	var urls []string
	for _, row := range remaining[1:] {
		urls = append(urls, row[1])
	}
	want := []string{
		"https://www.amazon.com/dp/A000000002",
		"https://www.amazon.com/dp/A000000003",
		"https://www.amazon.com/dp/A000000005",
		"https://www.amazon.com/dp/A000000006",
	}
	if len(urls) != len(want) {
		t.Fatalf("remaining = %v", urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("remaining = %v, want %v", urls, want)
		}
	}

	archive, err := wb.Tab("Archive")
	if err != nil {
		t.Fatalf("archive tab: %v", err)
	}
	archived, err := archive.Rows(4)
	if err != nil {
		t.Fatalf("archive rows: %v", err)
	}
	if len(archived) != 3 {
		t.Fatalf("archive rows = %d, want header + 2", len(archived))
	}
	if archived[0][0] != "Timestamp" {
		t.Fatalf("header not copied: %v", archived[0])
	}
	if archived[1][1] != "https://www.amazon.com/dp/A000000001" || archived[2][1] != "https://www.amazon.com/dp/A000000004" {
		t.Fatalf("archive order = %v", archived[1:])
	}
	if v := testutil.ToFloat64(s.archived); v != 2 {
		t.Fatalf("archived counter = %v", v)
	}
}

func TestSweepAppendsToExistingArchive(t *testing.T) {
	s, wb, tab := newSweeper(t)
	old := now.Add(-40 * 24 * time.Hour).Format(time.RFC3339)

	archive, _, err := wb.EnsureTab("Archive")
	if err != nil {
		t.Fatalf("archive tab: %v", err)
	}
	setRows(t, archive, [][]string{{"Timestamp"}, {"earlier"}})
	setRows(t, tab, [][]string{
		{"Timestamp", "Product URL", "Affiliate Link", "Status"},
		{old, "https://www.amazon.com/dp/A000000001", "https://amzn.to/a", "Completed"},
	})

	if _, err := s.Sweep(wb); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	rows, err := archive.Rows(2)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "earlier" || rows[2][1] != "https://www.amazon.com/dp/A000000001" {
		t.Fatalf("archive = %v", rows)
	}
}

func TestSweepNothingToArchive(t *testing.T) {
	s, wb, tab := newSweeper(t)
	setRows(t, tab, [][]string{{"Timestamp", "Product URL", "Affiliate Link", "Status"}})

	result, err := s.Sweep(wb)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Archived != 0 {
		t.Fatalf("archived = %d", result.Archived)
	}
	if _, err := wb.Tab("Archive"); err == nil {
		t.Fatalf("archive tab should not be created when nothing moves")
	}
}

func TestSweepRetentionConfigurable(t *testing.T) {
	s, wb, tab := newSweeper(t)
	s.cfg.ArchiveRetention = time.Hour
	setRows(t, tab, [][]string{
		{"Timestamp", "Product URL", "Affiliate Link", "Status"},
		{now.Add(-2 * time.Hour).Format(time.RFC3339), "https://www.amazon.com/dp/A000000001", "https://amzn.to/a", "Completed"},
	})

	result, err := s.Sweep(wb)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Archived != 1 {
		t.Fatalf("archived = %d, want 1", result.Archived)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	if _, err := Schedule("every day", func() {}); err == nil {
		t.Fatalf("expected error for bad cron expression")
	}
}

func TestScheduleStarts(t *testing.T) {
	var calls int32
	c, err := Schedule("0 3 * * *", func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	defer c.Stop()
	if len(c.Entries()) != 1 {
		t.Fatalf("entries = %d, want 1", len(c.Entries()))
	}
}
