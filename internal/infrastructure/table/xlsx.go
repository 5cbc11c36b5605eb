package table

import (
	"bytes"
	"errors"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// xlsxCodec reads the first worksheet. Encode builds a fresh single-sheet
// workbook; Patch updates cells of an existing one.
type xlsxCodec struct{}

func (xlsxCodec) Decode(r io.Reader) (string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, err
	}
	return sheets[0], rows, nil
}

func (xlsxCodec) Encode(sheet string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, err
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (xlsxCodec) Patch(src []byte, sheet string, rows [][]string, cells []cellRef) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for _, c := range cells {
		name, err := excelize.CoordinatesToCellName(c.Col+1, c.Row+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, name, rows[c.Row][c.Col]); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
