// Package archive moves old completed rows out of the tracking sheet.
package archive

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/parser"
	"github.com/aluiziolira/sheethook/sheet"
	"github.com/prometheus/client_golang/prometheus"
)

// Sweeper relocates completed rows older than the retention window to the
// archive sheet.
type Sweeper struct {
	cfg      *config.Config
	archived prometheus.Counter
	now      func() time.Time
}

// NewSweeper returns a sweeper and registers its counter on reg.
func NewSweeper(cfg *config.Config, reg prometheus.Registerer) *Sweeper {
	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sheethook_rows_archived_total",
		Help: "Rows moved to the archive sheet.",
	})
	if reg != nil {
		reg.MustRegister(archived)
	}
	return &Sweeper{cfg: cfg, archived: archived, now: time.Now}
}

// Sweep archives eligible rows of wb. Rows are appended to the archive in
// sheet order and then removed from the bottom up so earlier indices stay
// valid. Completed rows whose timestamp is blank or unreadable are left in
// place and counted as skipped.
func (s *Sweeper) Sweep(wb *sheet.Workbook) (models.ArchiveResult, error) {
	var result models.ArchiveResult

	src, err := wb.Tab(s.cfg.SheetName)
	if err != nil {
		return result, err
	}
	cols := s.cfg.Columns
	width := cols.Width()
	rows, err := src.Rows(width)
	if err != nil {
		return result, err
	}

	cutoff := s.now().Add(-s.cfg.ArchiveRetention)
	var selected []int
	for i := 1; i < len(rows); i++ {
		index := i + 1
		status := parser.NormalizeCell(rows[i][cols.Status-1])
		if !strings.EqualFold(status, s.cfg.Statuses.Completed) {
			continue
		}
		raw, err := src.RawCell(index, cols.Timestamp)
		if err != nil {
			return result, err
		}
		ts, err := parser.ParseTimestamp(raw)
		if err != nil {
			result.Skipped++
			slog.Debug("archive skipped row", slog.Int("row", index), slog.Any("error", err))
			continue
		}
		if ts.Before(cutoff) {
			selected = append(selected, index)
		}
	}
	if len(selected) == 0 {
		return result, nil
	}

	dst, created, err := wb.EnsureTab(s.cfg.ArchiveSheetName)
	if err != nil {
		return result, err
	}
	if created && len(rows) > 0 {
		if err := dst.SetRow(1, rows[0]); err != nil {
			return result, fmt.Errorf("copy header: %w", err)
		}
	}

	for _, index := range selected {
		if _, err := dst.AppendRow(rows[index-1]); err != nil {
			return result, err
		}
		result.Rows = append(result.Rows, cols.Record(index, rows[index-1]))
	}
	for i := len(selected) - 1; i >= 0; i-- {
		if err := src.DeleteRow(selected[i]); err != nil {
			return result, err
		}
	}

	result.Archived = len(selected)
	s.archived.Add(float64(result.Archived))
	slog.Info("archived completed rows",
		slog.Int("archived", result.Archived),
		slog.Int("skipped", result.Skipped),
		slog.String("sheet", dst.Name()),
	)
	return result, nil
}
