// Package watch turns workbook file changes into per-row edit events.
package watch

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Detector remembers a fingerprint per row and reports rows whose tracked
// cells changed since they were last remembered.
type Detector struct {
	cache *lru.Cache[int, uint64]
}

// NewDetector keeps fingerprints for up to size rows.
func NewDetector(size int) (*Detector, error) {
	cache, err := lru.New[int, uint64](size)
	if err != nil {
		return nil, fmt.Errorf("create row cache: %w", err)
	}
	return &Detector{cache: cache}, nil
}

// Fingerprint hashes the cells an edit depends on.
func Fingerprint(values ...string) uint64 {
	digest := xxhash.New()
	for _, v := range values {
		digest.WriteString(v)
		digest.Write([]byte{0})
	}
	return digest.Sum64()
}

// Changed reports whether row is unknown or its fingerprint differs.
func (d *Detector) Changed(row int, fp uint64) bool {
	prev, ok := d.cache.Peek(row)
	return !ok || prev != fp
}

// Remember records the current fingerprint of row.
func (d *Detector) Remember(row int, fp uint64) {
	d.cache.Add(row, fp)
}

// Reset drops every remembered row. Row indices shift when rows are
// deleted, so callers reset after removing rows.
func (d *Detector) Reset() {
	d.cache.Purge()
}

// Len is the number of remembered rows.
func (d *Detector) Len() int {
	return d.cache.Len()
}
