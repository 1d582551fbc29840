// Package models defines data structures shared by the tracker components.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the processing stage of a tracked row.
type Status string

const (
	StatusNone       Status = ""
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Row is one tracked product/article unit addressed by its 1-based index.
type Row struct {
	Index         int       `csv:"row" json:"row"`
	Timestamp     time.Time `csv:"-" json:"-"`
	RawTimestamp  string    `csv:"timestamp" json:"timestamp"`
	ProductURL    string    `csv:"product_url" json:"product_url"`
	AffiliateLink string    `csv:"affiliate_link" json:"affiliate_link"`
	Status        string    `csv:"status" json:"status"`
	ArticleTitle  string    `csv:"article_title" json:"article_title"`
	ArticleURL    string    `csv:"article_url" json:"article_url"`
	Notes         string    `csv:"notes" json:"notes"`
	ProductTitle  string    `csv:"product_title" json:"product_title"`
	ProductPrice  string    `csv:"product_price" json:"product_price"`
	ProductRating string    `csv:"product_rating" json:"product_rating"`
}

// Notification is the body POSTed to the workflow webhook.
type Notification struct {
	ProductURL    string `json:"product_url"`
	AffiliateLink string `json:"affiliate_link"`
	RowNumber     int    `json:"row_number"`
	Timestamp     string `json:"timestamp"`
	SheetID       string `json:"sheet_id"`
}

// CallbackResult is the asynchronous result delivered by the workflow engine.
type CallbackResult struct {
	RowNumber     int  `json:"row_number"`
	Success       bool `json:"success"`
	ArticleTitle  Text `json:"article_title,omitempty"`
	ArticleURL    Text `json:"article_url,omitempty"`
	ProductTitle  Text `json:"product_title,omitempty"`
	ProductPrice  Text `json:"product_price,omitempty"`
	ProductRating Text `json:"product_rating,omitempty"`
	Error         Text `json:"error,omitempty"`
}

// EditEvent reports that a row was edited. Sheet and Column are optional;
// when set they narrow the event the same way a spreadsheet trigger would.
type EditEvent struct {
	Row    int    `json:"row_number"`
	Sheet  string `json:"sheet,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ArchiveResult summarises one archival sweep.
type ArchiveResult struct {
	Archived int
	Skipped  int
	Rows     []Row
}

// Text is a string that also accepts JSON numbers and booleans, kept in
// their literal form. Workflow engines frequently send prices and ratings
// as numbers.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	switch data[0] {
	case '{', '[':
		return fmt.Errorf("text field: unexpected %s", string(data[:1]))
	}
	*t = Text(data)
	return nil
}

// String returns the plain string value.
func (t Text) String() string {
	return string(t)
}
