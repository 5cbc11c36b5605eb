package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the delivery state of a Record.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSent    Status = "Sent"
	StatusFailed  Status = "Failed"
)

// ErrInvalidTransition is returned when a status change would leave the
// Pending -> Sent|Failed path.
var ErrInvalidTransition = errors.New("invalid status transition")

// Fields is an ordered column name -> value mapping for one row.
type Fields struct {
	keys   []string
	values map[string]string
}

func NewFields() *Fields {
	return &Fields{values: map[string]string{}}
}

// Set adds or replaces a field; new keys keep insertion order.
func (f *Fields) Set(key, value string) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value stored under the exact key.
func (f *Fields) Get(key string) string {
	if f == nil {
		return ""
	}
	return f.values[key]
}

// Lookup matches key case-insensitively after trimming.
func (f *Fields) Lookup(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	if v, ok := f.values[key]; ok {
		return v, true
	}
	key = strings.TrimSpace(key)
	for _, k := range f.keys {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return f.values[k], true
		}
	}
	return "", false
}

// Keys returns field names in column order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Record is one recipient row plus its mutable send status.
type Record struct {
	// Row is the 1-based data row index in the source table (header excluded).
	Row        int
	Fields     *Fields
	Status     Status
	SentAt     *time.Time
	Diagnostic string
}

// MarkSent moves a pending record to Sent.
func (r *Record) MarkSent(at time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: row %d is %s", ErrInvalidTransition, r.Row, r.Status)
	}
	t := at
	r.Status = StatusSent
	r.SentAt = &t
	r.Diagnostic = ""
	return nil
}

// MarkFailed moves a pending record to Failed; SentAt stays nil.
func (r *Record) MarkFailed(diagnostic string) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: row %d is %s", ErrInvalidTransition, r.Row, r.Status)
	}
	r.Status = StatusFailed
	r.SentAt = nil
	r.Diagnostic = diagnostic
	return nil
}

// Table is the full record collection in source order.
type Table struct {
	// Columns is the header in source order; the status and timestamp
	// columns are included, appended when the source lacked them.
	Columns []string
	Records []*Record
	// Sheet is the worksheet name for spreadsheet sources.
	Sheet string
}

// Count returns how many records currently have status s.
func (t *Table) Count(s Status) int {
	n := 0
	for _, r := range t.Records {
		if r.Status == s {
			n++
		}
	}
	return n
}
