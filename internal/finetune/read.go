package finetune

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadPairs loads Input/Output pairs from an xlsx or csv file. sheet is only
// consulted for xlsx.
func ReadPairs(path, sheet string) ([]Pair, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	switch f {
	case FormatXLSX:
		rows, err = readXLSX(path, sheet)
	case FormatCSV:
		rows, err = readCSVFile(path)
	default:
		return nil, fmt.Errorf("%w for input: %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, err
	}
	return pairsFromRows(rows)
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	// Rows may be ragged; missing cells read as empty.
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
}

// pairsFromRows locates the Input and Output columns in the header row and
// collects the trimmed values of every following row. Rows where both cells
// are empty are skipped.
func pairsFromRows(rows [][]string) ([]Pair, error) {
	if len(rows) == 0 {
		return nil, errors.New("no header row")
	}
	in, out := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case InputColumn:
			if in < 0 {
				in = i
			}
		case OutputColumn:
			if out < 0 {
				out = i
			}
		}
	}
	if in < 0 || out < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", InputColumn, OutputColumn)
	}
	pairs := make([]Pair, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p := Pair{Input: cell(row, in), Output: cell(row, out)}
		if p.Input == "" && p.Output == "" {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
