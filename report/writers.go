// Package report exports tracked rows to CSV and JSON Lines files.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/sheethook/models"
)

// OutputWriter receives batches of rows. Nothing appears at the target path
// until Close succeeds. Abort discards everything written so far.
type OutputWriter interface {
	Write(rows []models.Row) error
	Close() error
	Abort() error
	Validate() error
}

// Header is the CSV column order.
var Header = []string{
	"row", "timestamp", "product_url", "affiliate_link", "status", "article_title",
	"article_url", "notes", "product_title", "product_price", "product_rating",
}

// New opens a writer for format ("csv", "json" or "dual") at path. A dual
// writer derives "<base>.csv" and "<base>.jsonl" from path.
func New(format, path string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVWriter(path)
	case "json", "jsonl":
		return NewJSONWriter(path)
	case "dual":
		base := strings.TrimSuffix(path, filepath.Ext(path))
		return NewDualWriter(base+".csv", base+".jsonl")
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// Record flattens row in Header order.
func Record(row models.Row) []string {
	return []string{
		strconv.Itoa(row.Index),
		row.RawTimestamp,
		row.ProductURL,
		row.AffiliateLink,
		row.Status,
		row.ArticleTitle,
		row.ArticleURL,
		row.Notes,
		row.ProductTitle,
		row.ProductPrice,
		row.ProductRating,
	}
}

type encoder interface {
	begin(out io.Writer) error
	encode(row models.Row) error
	end() error
}

type csvEncoder struct {
	w *csv.Writer
}

func (e *csvEncoder) begin(out io.Writer) error {
	e.w = csv.NewWriter(out)
	if err := e.w.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	return nil
}

func (e *csvEncoder) encode(row models.Row) error {
	return e.w.Write(Record(row))
}

func (e *csvEncoder) end() error {
	e.w.Flush()
	return e.w.Error()
}

type jsonlEncoder struct {
	enc *json.Encoder
}

func (e *jsonlEncoder) begin(out io.Writer) error {
	e.enc = json.NewEncoder(out)
	return nil
}

func (e *jsonlEncoder) encode(row models.Row) error {
	return e.enc.Encode(row)
}

func (e *jsonlEncoder) end() error { return nil }

// FileWriter streams rows into a temporary file next to path and renames it
// into place on Close. After a failed Write, Close discards the file instead.
type FileWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	enc    encoder
	rows   int
	err    error
	closed bool
}

// NewCSVWriter starts a CSV export to path. The header row is written first.
func NewCSVWriter(path string) (*FileWriter, error) {
	return newFileWriter(path, &csvEncoder{})
}

// NewJSONWriter starts a JSON Lines export to path.
func NewJSONWriter(path string) (*FileWriter, error) {
	return newFileWriter(path, &jsonlEncoder{})
}

func newFileWriter(path string, enc encoder) (*FileWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create export file for %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	if err := enc.begin(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &FileWriter{path: path, file: f, buf: buf, enc: enc}, nil
}

// Path is the final location of the export.
func (w *FileWriter) Path() string {
	return w.path
}

// Write encodes rows.
func (w *FileWriter) Write(rows []models.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("write %s: writer closed", w.path)
	}
	if w.err != nil {
		return w.err
	}
	for _, row := range rows {
		if err := w.enc.encode(row); err != nil {
			w.err = fmt.Errorf("encode row %d: %w", row.Index, err)
			return w.err
		}
		w.rows++
	}
	return nil
}

// Close flushes the export and moves it to its final path. Calling it again
// is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	tmp := w.file.Name()
	if w.err != nil {
		w.file.Close()
		os.Remove(tmp)
		return fmt.Errorf("discard export %s: %w", w.path, w.err)
	}
	err := errors.Join(w.enc.end(), w.buf.Flush(), w.file.Close())
	if err == nil {
		err = os.Rename(tmp, w.path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finish export %s: %w", w.path, err)
	}
	return nil
}

// Abort drops the temporary file. The target path is left untouched.
func (w *FileWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	closeErr := w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("abort export %s: %w", w.path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("abort export %s: %w", w.path, closeErr)
	}
	return nil
}

// Validate reports an export that received no rows.
func (w *FileWriter) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rows == 0 {
		return fmt.Errorf("export %s has no rows", w.path)
	}
	return nil
}

// MultiWriter fans every batch out to several writers. A failed Write on
// any of them makes Close discard all of them.
type MultiWriter struct {
	writers []OutputWriter
	err     error
}

// NewDualWriter exports the same rows as CSV and JSON Lines.
func NewDualWriter(csvPath, jsonPath string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvPath)
	if err != nil {
		return nil, err
	}
	jsonWriter, err := NewJSONWriter(jsonPath)
	if err != nil {
		csvWriter.Abort()
		return nil, err
	}
	return &MultiWriter{writers: []OutputWriter{csvWriter, jsonWriter}}, nil
}

// Write writes rows to every writer.
func (m *MultiWriter) Write(rows []models.Row) error {
	if m.err != nil {
		return m.err
	}
	for _, w := range m.writers {
		if err := w.Write(rows); err != nil {
			m.err = err
			return err
		}
	}
	return nil
}

// Close closes every writer, even after a failure.
func (m *MultiWriter) Close() error {
	if m.err != nil {
		return errors.Join(m.err, m.Abort())
	}
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Abort aborts every writer.
func (m *MultiWriter) Abort() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Abort())
	}
	return errors.Join(errs...)
}

// Validate validates every writer.
func (m *MultiWriter) Validate() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Validate())
	}
	return errors.Join(errs...)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
