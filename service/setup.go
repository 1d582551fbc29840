package service

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/sheethook/sheet"
)

var headerStyle = sheet.HeaderStyle{Background: "4CAF50", FontColor: "FFFFFF", Bold: true}

// column layout of the tracking sheet: header text and display width in
// characters.
type columnLayout struct {
	col    int
	header string
	width  float64
}

func (s *Service) layout() []columnLayout {
	cols := s.cfg.Columns
	return []columnLayout{
		{cols.Timestamp, "Timestamp", 21},
		{cols.ProductURL, "Product URL", 43},
		{cols.AffiliateLink, "Affiliate Link", 29},
		{cols.Status, "Status", 14},
		{cols.ArticleTitle, "Article Title", 43},
		{cols.ArticleURL, "Article URL", 43},
		{cols.Notes, "Processing Notes", 29},
		{cols.ProductTitle, "Product Title", 36},
		{cols.ProductPrice, "Product Price", 14},
		{cols.ProductRating, "Product Rating", 14},
	}
}

// Headers returns the header row in column order.
func (s *Service) Headers() []string {
	headers := make([]string, s.cfg.Columns.Width())
	for _, c := range s.layout() {
		headers[c.col-1] = c.header
	}
	return headers
}

// Setup lays out the tracking sheet: creates it when missing, writes and
// styles the header row, installs the input validation rules and sets the
// column widths. Running it again rewrites the same layout.
func (s *Service) Setup(ctx context.Context) error {
	return s.pipe.Submit(ctx, "setup", func(ctx context.Context) error {
		return s.store.Update(func(wb *sheet.Workbook) error {
			tab, created, err := wb.EnsureTab(s.cfg.SheetName)
			if err != nil {
				return err
			}
			if err := tab.SetHeader(s.Headers(), headerStyle); err != nil {
				return err
			}

			last := s.cfg.ValidationRows + 1
			cols := s.cfg.Columns
			if err := tab.RequireTextContains(cols.ProductURL, 2, last, "amazon.", "Must be a valid Amazon URL"); err != nil {
				return err
			}
			if err := tab.RequireTextContains(cols.AffiliateLink, 2, last, "amzn.to", "Must be a valid Amazon affiliate link"); err != nil {
				return err
			}

			for _, c := range s.layout() {
				if err := tab.SetColumnWidth(c.col, c.width); err != nil {
					return err
				}
			}

			slog.Info("sheet configured",
				slog.String("sheet", tab.Name()),
				slog.Bool("created", created),
				slog.Int("validation_rows", s.cfg.ValidationRows),
			)
			return nil
		})
	})
}
