package catalog

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/model"
)

// XLSXOptions configures the spreadsheet reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads a sheet and returns all rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// LoadXLSX parses a clinic catalog export. The first row is the header;
// blank rows are skipped.
func LoadXLSX(path string, opts XLSXOptions) ([]model.Protocol, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("xlsx: %s has no header row", path)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = HeaderKey(h)
	}

	var protocols []model.Protocol
	for i, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		blank := true
		for j, h := range header {
			if j < len(row) && row[j] != "" {
				fields[h] = row[j]
				blank = false
			}
		}
		if blank {
			continue
		}
		p, err := FromFields(fields)
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: row %d", i+2)
		}
		protocols = append(protocols, p)
	}

	protocols, err = CleanAll(protocols)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog: loaded xlsx catalog",
		zap.String("path", path),
		zap.Int("protocols", len(protocols)),
	)
	return protocols, nil
}

// NewXLSXProvider loads a spreadsheet catalog into a StaticProvider.
func NewXLSXProvider(path string, opts XLSXOptions) (*StaticProvider, error) {
	protocols, err := LoadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(protocols), nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
