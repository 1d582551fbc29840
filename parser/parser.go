// Package parser validates and normalises the values users type into the
// tracking sheet.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultAmazonDomains are the regional storefronts accepted in product URLs.
var DefaultAmazonDomains = []string{
	"amazon.com", "amazon.es", "amazon.co.uk", "amazon.de",
	"amazon.fr", "amazon.it", "amazon.ca", "amazon.com.mx",
}

const productPageMarker = "/dp/"

var asinPattern = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

// IsValidProductURL reports whether url names a product detail page on one of
// the given Amazon domains. A nil domain list means DefaultAmazonDomains.
func IsValidProductURL(url string, domains []string) bool {
	if url == "" {
		return false
	}
	if domains == nil {
		domains = DefaultAmazonDomains
	}
	for _, domain := range domains {
		if domain != "" && strings.Contains(url, domain) {
			return strings.Contains(url, productPageMarker)
		}
	}
	return false
}

// IsValidAffiliateLink reports whether link is an amzn.to short link or an
// Amazon link carrying an associate tag.
func IsValidAffiliateLink(link string) bool {
	if link == "" {
		return false
	}
	if strings.Contains(link, "amzn.to") {
		return true
	}
	return strings.Contains(link, "amazon.") && strings.Contains(link, "tag=")
}

// ExtractASIN returns the product identifier from a /dp/ URL.
func ExtractASIN(url string) (string, bool) {
	match := asinPattern.FindStringSubmatch(url)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// NormalizeCell trims surrounding whitespace from a cell value.
func NormalizeCell(value string) string {
	return strings.TrimSpace(value)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads a timestamp cell. Text cells are tried against the
// layouts the tracker and common spreadsheet exports produce; bare numbers
// are treated as spreadsheet date serials.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = NormalizeCell(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp serial %q: %w", raw, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// FormatTimestamp renders t as UTC ISO-8601 with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
