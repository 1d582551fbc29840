package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aluiziolira/sheethook/config"
	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/parser"
	"github.com/aluiziolira/sheethook/report"
	"github.com/aluiziolira/sheethook/watch"
	"github.com/spf13/cobra"
)

func newWorkbookWatcher(a *app) (*watch.Watcher, error) {
	return watch.NewWatcher(a.store.Path(), a.cfg.WatchDebounce, func(ctx context.Context) error {
		_, err := a.svc.Scan(ctx)
		return err
	})
}

func newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the tracking sheet with headers, validation rules and column widths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.Setup(cmd.Context()); err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sheet %q configured in %s\n", cfg.SheetName, cfg.WorkbookPath)
			return nil
		},
	}
}

func newArchiveCommand() *cobra.Command {
	var (
		exportPath   string
		exportFormat string
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move completed rows older than the retention period to the archive sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.svc.Archive(cmd.Context())
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d rows to %q (%d completed rows without a readable timestamp skipped)\n",
				result.Archived, cfg.ArchiveSheetName, result.Skipped)

			if exportPath != "" && len(result.Rows) > 0 {
				if err := writeReport(exportFormat, exportPath, result.Rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived rows written to %s\n", exportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "Also write the archived rows to this file")
	cmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format: csv, json or dual")
	return cmd
}

func newNotifyTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a sample notification to the webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.close()

			note := a.svc.SampleNotification(parser.FormatTimestamp(time.Now()))
			if err := a.notifier.Notify(cmd.Context(), note); err != nil {
				return fmt.Errorf("test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook %s accepted the test notification\n", a.notifier.URL())
			return nil
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <product-url> <affiliate-link>",
		Short: "Validate a product URL and affiliate link the way the tracker does",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyVerbose(cfg)
			productURL := parser.NormalizeCell(args[0])
			link := parser.NormalizeCell(args[1])
			out := cmd.OutOrStdout()

			validURL := parser.IsValidProductURL(productURL, cfg.AmazonDomains)
			validLink := parser.IsValidAffiliateLink(link)
			fmt.Fprintf(out, "product URL:    %s\n", verdict(validURL))
			fmt.Fprintf(out, "affiliate link: %s\n", verdict(validLink))
			if asin, ok := parser.ExtractASIN(productURL); ok {
				fmt.Fprintf(out, "ASIN:           %s\n", asin)
			}
			if !validURL || !validLink {
				return fmt.Errorf("inputs would be rejected")
			}
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the tracked rows to CSV or JSONL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.svc.Rows(cmd.Context())
			if err != nil {
				return fmt.Errorf("read rows: %w", err)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rows to export")
				return nil
			}
			if err := writeReport(format, output, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(rows), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv, json or dual")
	cmd.Flags().StringVarP(&output, "output", "o", "data/rows.csv", "Output file path")
	return cmd
}

// writeReport publishes the export only when every row was written.
func writeReport(format, path string, rows []models.Row) error {
	writer, err := report.New(format, path)
	if err != nil {
		return err
	}
	if err := writer.Write(rows); err != nil {
		writer.Abort()
		return fmt.Errorf("write export: %w", err)
	}
	if err := writer.Validate(); err != nil {
		writer.Abort()
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	return nil
}

func verdict(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
