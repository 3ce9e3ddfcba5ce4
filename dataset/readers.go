package dataset

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/datacrew/frame"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Reader loads one tabular file. sheet is only meaningful for workbooks.
type Reader interface {
	Read(path, sheet string) (*frame.Table, error)
}

type CSVReader struct{}

func (r *CSVReader) Read(path, _ string) (*frame.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()
	return frame.ReadCSV(f)
}

type TSVReader struct{}

func (r *TSVReader) Read(path, _ string) (*frame.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open tsv")
	}
	defer f.Close()
	return frame.ReadTSV(f)
}

// JSONReader reads an array of records or an object of columns.
type JSONReader struct{}

func (r *JSONReader) Read(path, _ string) (*frame.Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read json")
	}
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "{") {
		return frame.FromColumnsJSON(content)
	}
	return frame.FromRecords(content)
}

// ExcelReader reads the named sheet, or the first one when sheet is empty.
// The first row is the header.
type ExcelReader struct{}

func (r *ExcelReader) Read(path, sheet string) (*frame.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open excel file")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheet)
	}
	if len(rows) == 0 {
		return nil, frame.ErrEmptyInput
	}
	header := rows[0]
	width := len(header)
	data := make([][]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]any, width)
		for i := 0; i < width && i < len(row); i++ {
			cells[i] = frame.ParseCell(row[i])
		}
		data = append(data, cells)
	}
	return frame.New(header, data)
}

var readers = map[string]Reader{
	".csv":  &CSVReader{},
	".txt":  &CSVReader{},
	".tsv":  &TSVReader{},
	".json": &JSONReader{},
	".xlsx": &ExcelReader{},
	".xlsm": &ExcelReader{},
}

// ReadFile picks a reader by extension.
func ReadFile(path, sheet string) (*frame.Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := readers[ext]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedType, "%q", ext)
	}
	return reader.Read(path, sheet)
}
