package table

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// codec converts between a file encoding and a grid of cells. Row 0 is the header.
type codec interface {
	Decode(r io.Reader) (sheet string, rows [][]string, err error)
	Encode(sheet string, rows [][]string) ([]byte, error)
}

// patcher is implemented by codecs that can rewrite single cells of the
// source document instead of re-encoding the whole grid.
type patcher interface {
	Patch(src []byte, sheet string, rows [][]string, cells []cellRef) ([]byte, error)
}

// cellRef addresses rows[Row][Col].
type cellRef struct {
	Row int
	Col int
}

func codecFor(path string) (codec, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return csvCodec{}, nil
	case ".xlsx", ".xlsm":
		return xlsxCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported table format %q, use .xlsx or .csv", ext)
	}
}

// EncodeRows encodes rows in the format implied by path's extension.
func EncodeRows(path, sheet string, rows [][]string) ([]byte, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	return c.Encode(sheet, rows)
}
