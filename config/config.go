package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/sheethook/models"
)

// Columns maps each tracked field to its 1-based spreadsheet column.
type Columns struct {
	Timestamp     int `yaml:"timestamp"`
	ProductURL    int `yaml:"product_url"`
	AffiliateLink int `yaml:"affiliate_link"`
	Status        int `yaml:"status"`
	ArticleTitle  int `yaml:"article_title"`
	ArticleURL    int `yaml:"article_url"`
	Notes         int `yaml:"notes"`
	ProductTitle  int `yaml:"product_title"`
	ProductPrice  int `yaml:"product_price"`
	ProductRating int `yaml:"product_rating"`
}

// Width is the number of columns a full row spans.
func (c Columns) Width() int {
	width := 0
	for _, col := range c.all() {
		if col > width {
			width = col
		}
	}
	return width
}

// Record maps the cells of one row, index 0 holding column 1, onto a Row.
func (c Columns) Record(index int, values []string) models.Row {
	at := func(col int) string {
		if col <= 0 || col > len(values) {
			return ""
		}
		return values[col-1]
	}
	return models.Row{
		Index:         index,
		RawTimestamp:  at(c.Timestamp),
		ProductURL:    at(c.ProductURL),
		AffiliateLink: at(c.AffiliateLink),
		Status:        at(c.Status),
		ArticleTitle:  at(c.ArticleTitle),
		ArticleURL:    at(c.ArticleURL),
		Notes:         at(c.Notes),
		ProductTitle:  at(c.ProductTitle),
		ProductPrice:  at(c.ProductPrice),
		ProductRating: at(c.ProductRating),
	}
}

func (c Columns) all() []int {
	return []int{
		c.Timestamp, c.ProductURL, c.AffiliateLink, c.Status, c.ArticleTitle,
		c.ArticleURL, c.Notes, c.ProductTitle, c.ProductPrice, c.ProductRating,
	}
}

// StatusLabels are the texts persisted in the status column.
type StatusLabels struct {
	Pending    string `yaml:"pending"`
	Processing string `yaml:"processing"`
	Completed  string `yaml:"completed"`
	Error      string `yaml:"error"`
}

// Config holds tracker configuration.
type Config struct {
	WorkbookPath     string        `yaml:"workbook_path"`
	SheetName        string        `yaml:"sheet_name"`
	ArchiveSheetName string        `yaml:"archive_sheet_name"`
	SheetID          string        `yaml:"sheet_id"`
	WebhookURL       string        `yaml:"webhook_url"`
	WebhookTimeout   time.Duration `yaml:"webhook_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	ListenAddr       string        `yaml:"listen_addr"`
	ArchiveRetention time.Duration `yaml:"archive_retention"`
	ArchiveSchedule  string        `yaml:"archive_schedule"`
	EligibleStatuses []string      `yaml:"eligible_statuses"`
	ValidationRows   int           `yaml:"validation_rows"`
	Watch            bool          `yaml:"watch"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
	WatchCacheSize   int           `yaml:"watch_cache_size"`
	MaxCallbackBytes int64         `yaml:"max_callback_bytes"`
	AmazonDomains    []string      `yaml:"amazon_domains"`
	Columns          Columns       `yaml:"columns"`
	Statuses         StatusLabels  `yaml:"statuses"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultConfig returns the layout used by the tracking sheet template.
func DefaultConfig() *Config {
	return &Config{
		WorkbookPath:     "data/tracking.xlsx",
		SheetName:        "Amazon_Products",
		ArchiveSheetName: "Archive",
		WebhookTimeout:   15 * time.Second,
		UserAgent:        "sheethook/1.0 (+https://github.com/aluiziolira/sheethook)",
		ListenAddr:       ":8080",
		ArchiveRetention: 30 * 24 * time.Hour,
		ArchiveSchedule:  "0 3 * * *",
		ValidationRows:   1000,
		WatchDebounce:    750 * time.Millisecond,
		WatchCacheSize:   4096,
		MaxCallbackBytes: 1 << 20,
		AmazonDomains: []string{
			"amazon.com", "amazon.es", "amazon.co.uk", "amazon.de",
			"amazon.fr", "amazon.it", "amazon.ca", "amazon.com.mx",
		},
		Columns: Columns{
			Timestamp:     1,
			ProductURL:    2,
			AffiliateLink: 3,
			Status:        4,
			ArticleTitle:  5,
			ArticleURL:    6,
			Notes:         7,
			ProductTitle:  8,
			ProductPrice:  9,
			ProductRating: 10,
		},
		Statuses: StatusLabels{
			Pending:    "Pending",
			Processing: "Processing",
			Completed:  "Completed",
			Error:      "Error",
		},
	}
}

// WorkbookID is the identifier sent to the workflow as sheet_id.
func (c *Config) WorkbookID() string {
	if c.SheetID != "" {
		return c.SheetID
	}
	base := filepath.Base(c.WorkbookPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}

	if c.WebhookURL == "" {
		return fmt.Errorf("webhook URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.WebhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("webhook URL must include a host")
	}
	return nil
}

// ValidateLocal checks everything except the webhook URL, for commands that
// only touch the workbook.
func (c *Config) ValidateLocal() error {
	if c.WorkbookPath == "" {
		return fmt.Errorf("workbook path cannot be empty")
	}
	if c.SheetName == "" {
		return fmt.Errorf("sheet name cannot be empty")
	}
	if c.ArchiveSheetName == "" {
		return fmt.Errorf("archive sheet name cannot be empty")
	}
	if strings.EqualFold(c.SheetName, c.ArchiveSheetName) {
		return fmt.Errorf("archive sheet name must differ from sheet name %q", c.SheetName)
	}

	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.ArchiveRetention < 0 {
		return fmt.Errorf("archive retention cannot be negative")
	}
	if c.ValidationRows <= 0 {
		return fmt.Errorf("validation rows must be positive")
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch debounce cannot be negative")
	}
	if c.WatchCacheSize <= 0 {
		return fmt.Errorf("watch cache size must be positive")
	}
	if c.MaxCallbackBytes <= 0 {
		return fmt.Errorf("max callback bytes must be positive")
	}
	if len(c.AmazonDomains) == 0 {
		return fmt.Errorf("amazon domains cannot be empty")
	}

	seen := make(map[int]struct{})
	for _, col := range c.Columns.all() {
		if col <= 0 {
			return fmt.Errorf("column numbers must be positive")
		}
		if _, ok := seen[col]; ok {
			return fmt.Errorf("column %d is mapped twice", col)
		}
		seen[col] = struct{}{}
	}

	labels := make(map[string]struct{})
	for _, label := range []string{c.Statuses.Pending, c.Statuses.Processing, c.Statuses.Completed, c.Statuses.Error} {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("status labels cannot be empty")
		}
		if _, ok := labels[label]; ok {
			return fmt.Errorf("status label %q is used twice", label)
		}
		labels[label] = struct{}{}
	}

	return nil
}
