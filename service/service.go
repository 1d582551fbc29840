// Package service binds the workbook store, the serial pipeline and the row
// processor into the operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/sheethook/archive"
	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/parser"
	"github.com/aluiziolira/sheethook/pipeline"
	"github.com/aluiziolira/sheethook/processor"
	"github.com/aluiziolira/sheethook/sheet"
	"github.com/aluiziolira/sheethook/watch"
)

// ErrInvalidRow is returned for row numbers that address the header row or
// nothing at all.
var ErrInvalidRow = errors.New("service: row number must be 2 or greater")

// ErrWatchDisabled is returned by Scan when no change detector is configured.
var ErrWatchDisabled = errors.New("service: change detection disabled")

// Service runs every workbook operation as one job on the pipeline, inside
// one store session.
type Service struct {
	cfg      *config.Config
	store    *sheet.Store
	pipe     *pipeline.Pipeline
	proc     *processor.Processor
	sweeper  *archive.Sweeper
	detector *watch.Detector
}

// New wires a service. detector may be nil when file watching is off.
func New(cfg *config.Config, store *sheet.Store, pipe *pipeline.Pipeline, proc *processor.Processor, sweeper *archive.Sweeper, detector *watch.Detector) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		pipe:     pipe,
		proc:     proc,
		sweeper:  sweeper,
		detector: detector,
	}
}

// EditOutcome reports what an edit event did to its row.
type EditOutcome struct {
	Row     int           `json:"row_number"`
	Status  models.Status `json:"status"`
	Skipped bool          `json:"skipped"`
}

// Edit handles an edit notification for one row.
func (s *Service) Edit(ctx context.Context, ev models.EditEvent) (EditOutcome, error) {
	outcome := EditOutcome{Row: ev.Row, Skipped: true}
	if ev.Row < 2 {
		return outcome, ErrInvalidRow
	}
	if !s.proc.Relevant(ev) {
		slog.Debug("edit ignored", slog.Int("row", ev.Row), slog.String("sheet", ev.Sheet), slog.Int("column", ev.Column))
		return outcome, nil
	}

	err := s.pipe.Submit(ctx, "edit", func(ctx context.Context) error {
		return s.store.Update(func(wb *sheet.Workbook) error {
			tab, err := wb.Tab(s.cfg.SheetName)
			if err != nil {
				return err
			}
			status, err := s.proc.HandleEdit(ctx, tab, ev.Row)
			if err != nil {
				return err
			}
			if err := s.remember(tab, ev.Row); err != nil {
				return err
			}
			outcome.Status = status
			if status == models.StatusNone {
				return sheet.ErrSkipSave
			}
			outcome.Skipped = false
			return nil
		})
	})
	return outcome, err
}

// Callback applies a workflow result to its row.
func (s *Service) Callback(ctx context.Context, result models.CallbackResult) (models.Status, error) {
	if result.RowNumber < 2 {
		return models.StatusNone, ErrInvalidRow
	}

	var status models.Status
	err := s.pipe.Submit(ctx, "callback", func(ctx context.Context) error {
		return s.store.Update(func(wb *sheet.Workbook) error {
			tab, err := wb.Tab(s.cfg.SheetName)
			if err != nil {
				return err
			}
			status, err = s.proc.HandleCallback(ctx, tab, result)
			if err != nil {
				return err
			}
			return s.remember(tab, result.RowNumber)
		})
	})
	return status, err
}

// Scan compares every data row with the detector and runs the edit path on
// rows that changed since the last scan. It returns the number of rows that
// were processed.
func (s *Service) Scan(ctx context.Context) (int, error) {
	if s.detector == nil {
		return 0, ErrWatchDisabled
	}

	handled := 0
	err := s.pipe.Submit(ctx, "scan", func(ctx context.Context) error {
		return s.store.Update(func(wb *sheet.Workbook) error {
			tab, err := wb.Tab(s.cfg.SheetName)
			if err != nil {
				return err
			}
			rows, err := tab.Rows(s.cfg.Columns.Width())
			if err != nil {
				return err
			}

			for i := 1; i < len(rows); i++ {
				index := i + 1
				fp := s.fingerprint(rows[i])
				if !s.detector.Changed(index, fp) {
					continue
				}
				record := s.cfg.Columns.Record(index, rows[i])
				if s.proc.Eligible(record.ProductURL, record.AffiliateLink, record.Status) {
					if _, err := s.proc.HandleEdit(ctx, tab, index); err != nil {
						return err
					}
					handled++
					if err := s.remember(tab, index); err != nil {
						return err
					}
					continue
				}
				s.detector.Remember(index, fp)
			}

			if handled == 0 {
				return sheet.ErrSkipSave
			}
			return nil
		})
	})
	if err != nil {
		return handled, err
	}
	if handled > 0 {
		slog.Info("scan processed rows", slog.Int("rows", handled))
	}
	return handled, nil
}

// Archive runs one archival sweep.
func (s *Service) Archive(ctx context.Context) (models.ArchiveResult, error) {
	var result models.ArchiveResult
	err := s.pipe.Submit(ctx, "archive", func(ctx context.Context) error {
		return s.store.Update(func(wb *sheet.Workbook) error {
			var err error
			result, err = s.sweeper.Sweep(wb)
			if err != nil {
				return err
			}
			if result.Archived == 0 {
				return sheet.ErrSkipSave
			}
			return nil
		})
	})
	if err != nil {
		return result, err
	}
	if result.Archived > 0 && s.detector != nil {
		// Deleting rows shifts every index below them.
		s.detector.Reset()
	}
	return result, nil
}

// Row returns the current state of one row.
func (s *Service) Row(ctx context.Context, index int) (models.Row, error) {
	if index < 2 {
		return models.Row{}, ErrInvalidRow
	}

	var row models.Row
	err := s.pipe.Submit(ctx, "row", func(ctx context.Context) error {
		return s.store.View(func(wb *sheet.Workbook) error {
			tab, err := wb.Tab(s.cfg.SheetName)
			if err != nil {
				return err
			}
			values, err := tab.Row(index, s.cfg.Columns.Width())
			if err != nil {
				return err
			}
			row = s.record(index, values)
			return nil
		})
	})
	return row, err
}

// Rows returns every data row holding any value.
func (s *Service) Rows(ctx context.Context) ([]models.Row, error) {
	var out []models.Row
	err := s.pipe.Submit(ctx, "rows", func(ctx context.Context) error {
		return s.store.View(func(wb *sheet.Workbook) error {
			tab, err := wb.Tab(s.cfg.SheetName)
			if err != nil {
				return err
			}
			rows, err := tab.Rows(s.cfg.Columns.Width())
			if err != nil {
				return err
			}
			for i := 1; i < len(rows); i++ {
				if blank(rows[i]) {
					continue
				}
				out = append(out, s.record(i+1, rows[i]))
			}
			return nil
		})
	})
	return out, err
}

// SampleNotification is the payload used to test the webhook by hand.
func (s *Service) SampleNotification(now string) models.Notification {
	return models.Notification{
		ProductURL:    "https://www.amazon.es/dp/B08N5WRWNW",
		AffiliateLink: "https://amzn.to/3example",
		RowNumber:     2,
		Timestamp:     now,
		SheetID:       s.cfg.WorkbookID(),
	}
}

func (s *Service) record(index int, values []string) models.Row {
	row := s.cfg.Columns.Record(index, values)
	if ts, err := parser.ParseTimestamp(row.RawTimestamp); err == nil {
		row.Timestamp = ts
	}
	return row
}

// remember stores the post-event fingerprint of row so the write that
// follows does not look like a user edit to the next scan.
func (s *Service) remember(tab *sheet.Tab, row int) error {
	if s.detector == nil {
		return nil
	}
	values, err := tab.Row(row, s.cfg.Columns.Width())
	if err != nil {
		return fmt.Errorf("read row %d: %w", row, err)
	}
	s.detector.Remember(row, s.fingerprint(values))
	return nil
}

func (s *Service) fingerprint(values []string) uint64 {
	record := s.cfg.Columns.Record(0, values)
	return watch.Fingerprint(
		parser.NormalizeCell(record.ProductURL),
		parser.NormalizeCell(record.AffiliateLink),
		parser.NormalizeCell(record.Status),
	)
}

func blank(values []string) bool {
	for _, v := range values {
		if parser.NormalizeCell(v) != "" {
			return false
		}
	}
	return true
}
