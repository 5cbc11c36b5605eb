package table

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

type csvCodec struct{}

func (csvCodec) Decode(r io.Reader) (string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return "", nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}
	return "", rows, nil
}

func (csvCodec) Encode(_ string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
