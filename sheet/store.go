package sheet

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSkipSave can be returned by an Update function to end the session
// without writing the workbook. Update then returns nil.
var ErrSkipSave = errors.New("sheet: skip save")

// Store hands out serialised workbook sessions. A file store reopens the
// workbook for every session so edits made outside the process are seen,
// and writes it back after a successful Update.
type Store struct {
	mu        sync.Mutex
	path      string
	sheetName string
	mem       *Workbook
}

// NewFileStore serves sessions over the workbook at path. A missing file is
// created with a first sheet named sheetName on the first Update.
func NewFileStore(path, sheetName string) *Store {
	return &Store{path: path, sheetName: sheetName}
}

// NewMemoryStore serves sessions over an in-memory workbook.
func NewMemoryStore(wb *Workbook) *Store {
	return &Store{mem: wb}
}

// Path is the backing file, empty for memory stores.
func (s *Store) Path() string {
	return s.path
}

// Update runs fn on the workbook and saves it when fn succeeds.
func (s *Store) Update(fn func(*Workbook) error) error {
	return s.session(true, fn)
}

// View runs fn on the workbook without saving.
func (s *Store) View(fn func(*Workbook) error) error {
	return s.session(false, fn)
}

func (s *Store) session(write bool, fn func(*Workbook) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mem != nil {
		if err := fn(s.mem); err != nil && !errors.Is(err, ErrSkipSave) {
			return err
		}
		return nil
	}

	wb, err := OpenOrCreate(s.path, s.sheetName)
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := fn(wb); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return nil
		}
		return err
	}
	if !write {
		return nil
	}
	if err := wb.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
