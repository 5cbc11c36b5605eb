package table

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oksasatya/mailmerge/internal/domain/entity"
	repo "github.com/oksasatya/mailmerge/internal/domain/repository"
)

// TimestampLayout is how sent timestamps are written to the table.
const TimestampLayout = "2006-01-02 15:04:05"

// Layout names the columns the repository needs to understand.
type Layout struct {
	Address   string
	Status    string
	Timestamp string
}

// Repository loads a recipient table from Source and saves it to Output.
type Repository struct {
	Source string
	Output string
	In     Storage
	Out    Storage
	Layout Layout

	raw   []byte          // source document, kept for codecs that patch in place
	added map[string]bool // columns Load appended to the header
}

var _ repo.RecordRepository = (*Repository)(nil)

func NewRepository(source, output string, in, out Storage, layout Layout) *Repository {
	if output == "" {
		output = source
	}
	return &Repository{Source: source, Output: output, In: in, Out: out, Layout: layout}
}

func unreadable(path string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", repo.ErrUnreadableSource, path, fmt.Sprintf(format, args...))
}

// Load reads the whole table. Header names are trimmed; the status and
// timestamp columns are appended when absent.
func (r *Repository) Load(ctx context.Context) (*entity.Table, error) {
	c, err := codecFor(r.Source)
	if err != nil {
		return nil, unreadable(r.Source, "%v", err)
	}
	rc, err := r.In.Open(ctx, r.Source)
	if err != nil {
		return nil, unreadable(r.Source, "%v", err)
	}
	defer func() { _ = rc.Close() }()

	var in io.Reader = rc
	if _, ok := c.(patcher); ok {
		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, unreadable(r.Source, "%v", err)
		}
		r.raw = raw
		in = bytes.NewReader(raw)
	}
	sheet, rows, err := c.Decode(in)
	if err != nil {
		return nil, unreadable(r.Source, "%v", err)
	}
	if len(rows) == 0 {
		return nil, unreadable(r.Source, "table is empty")
	}

	header, err := normalizeHeader(widen(rows[0], rows[1:]))
	if err != nil {
		return nil, unreadable(r.Source, "%v", err)
	}
	address := findColumn(header, r.Layout.Address)
	if address == "" {
		return nil, unreadable(r.Source, "missing recipient address column %q (available: %s)",
			r.Layout.Address, strings.Join(header, ", "))
	}
	r.Layout.Address = address
	r.added = make(map[string]bool, 2)
	r.Layout.Status = r.ensureColumn(&header, r.Layout.Status)
	r.Layout.Timestamp = r.ensureColumn(&header, r.Layout.Timestamp)

	t := &entity.Table{Columns: header, Sheet: sheet, Records: make([]*entity.Record, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		fields := entity.NewFields()
		for j, col := range header {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			fields.Set(col, v)
		}
		status, diagnostic := ParseStatus(fields.Get(r.Layout.Status))
		rec := &entity.Record{Row: i + 1, Fields: fields, Status: status, Diagnostic: diagnostic}
		if ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(fields.Get(r.Layout.Timestamp)), time.Local); err == nil {
			rec.SentAt = &ts
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Save writes every record in order. Status and timestamp cells are only
// rewritten for records whose status changed since Load. When source and
// output are both workbooks, only those cells and the appended headers are
// written into a copy of the source, so the rest of the workbook is untouched.
func (r *Repository) Save(ctx context.Context, t *entity.Table) error {
	c, err := codecFor(r.Output)
	if err != nil {
		return err
	}
	var dirty []cellRef
	rows := make([][]string, 0, len(t.Records)+1)
	rows = append(rows, append([]string(nil), t.Columns...))
	for j, col := range t.Columns {
		if r.added[col] {
			dirty = append(dirty, cellRef{Row: 0, Col: j})
		}
	}
	for i, rec := range t.Records {
		row := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			row[j] = rec.Fields.Get(col)
		}
		if changed(rec, rec.Fields.Get(r.Layout.Status)) {
			for j, col := range t.Columns {
				switch col {
				case r.Layout.Status:
					row[j] = FormatStatus(rec)
				case r.Layout.Timestamp:
					row[j] = ""
					if rec.SentAt != nil {
						row[j] = rec.SentAt.Format(TimestampLayout)
					}
				default:
					continue
				}
				dirty = append(dirty, cellRef{Row: i + 1, Col: j})
			}
		}
		rows = append(rows, row)
	}

	var data []byte
	if p, ok := c.(patcher); ok && r.raw != nil {
		data, err = p.Patch(r.raw, t.Sheet, rows, dirty)
	} else {
		data, err = c.Encode(t.Sheet, rows)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.Output, err)
	}
	if err := r.Out.Write(ctx, r.Output, data); err != nil {
		return fmt.Errorf("write %s: %w", r.Output, err)
	}
	return nil
}

func changed(rec *entity.Record, raw string) bool {
	status, _ := ParseStatus(raw)
	return status != rec.Status
}

// ParseStatus reads a status cell. Empty or "Pending" is pending, "Failed..."
// is failed, and any other non-empty text means an earlier run handled the row.
func ParseStatus(cell string) (entity.Status, string) {
	s := strings.TrimSpace(cell)
	switch {
	case s == "", strings.EqualFold(s, string(entity.StatusPending)):
		return entity.StatusPending, ""
	case len(s) >= len(entity.StatusFailed) && strings.EqualFold(s[:len(entity.StatusFailed)], string(entity.StatusFailed)):
		diag := strings.TrimSpace(strings.TrimPrefix(s[len(entity.StatusFailed):], ":"))
		return entity.StatusFailed, diag
	default:
		return entity.StatusSent, ""
	}
}

// FormatStatus renders the status cell for rec.
func FormatStatus(rec *entity.Record) string {
	switch rec.Status {
	case entity.StatusSent:
		return string(entity.StatusSent)
	case entity.StatusFailed:
		diag := strings.Join(strings.Fields(rec.Diagnostic), " ")
		if diag == "" {
			return string(entity.StatusFailed)
		}
		return string(entity.StatusFailed) + ": " + diag
	default:
		return ""
	}
}

func normalizeHeader(raw []string) ([]string, error) {
	header := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		header[i] = h
	}
	return header, nil
}

// findColumn returns the header entry matching name, exact first then ignoring case.
func findColumn(header []string, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, h := range header {
		if h == name {
			return h
		}
	}
	for _, h := range header {
		if strings.EqualFold(h, name) {
			return h
		}
	}
	return ""
}

// widen pads the header with blank names when a data row has more cells,
// so extra cells get their own "Column N" instead of shifting into the
// appended status columns.
func widen(header []string, rows [][]string) []string {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == len(header) {
		return header
	}
	out := make([]string, width)
	copy(out, header)
	return out
}

func (r *Repository) ensureColumn(header *[]string, name string) string {
	if found := findColumn(*header, name); found != "" {
		return found
	}
	name = strings.TrimSpace(name)
	*header = append(*header, name)
	r.added[name] = true
	return name
}
