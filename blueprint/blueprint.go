// Package blueprint is the JSON contract the visualizer hands to the
// reporter: what to draw, the code drawing it, and the data to bind.
package blueprint

import (
	"bytes"
	"strings"

	"github.com/antgroup/datacrew/frame"
	"github.com/antgroup/datacrew/utils/json"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// TypeNone means no chart applies; Description says why.
const TypeNone = "none"

// Data formats of DataSpec.
const (
	FormatCSVString         = "csv_string"
	FormatJSONRecordsString = "json_records_string"
	FormatJSONRecordsList   = "json_records_list"
	FormatDictOfLists       = "dict_of_lists"
)

var Formats = []string{FormatCSVString, FormatJSONRecordsString, FormatJSONRecordsList, FormatDictOfLists}

type Blueprint struct {
	VisualizationType string         `json:"visualization_type"`
	Code              *string        `json:"python_code_to_generate_figure"`
	Data              *DataSpec      `json:"data_for_visualization"`
	PlotParameters    map[string]any `json:"plot_parameters"`
	Description       string         `json:"description"`
}

type DataSpec struct {
	Format string          `json:"format"`
	Value  json.RawMessage `json:"value"`
}

type PlotParameters struct {
	Title            string         `mapstructure:"title"`
	XLabel           string         `mapstructure:"x_label"`
	YLabel           string         `mapstructure:"y_label"`
	SuggestedLibrary string         `mapstructure:"suggested_library"`
	Extra            map[string]any `mapstructure:",remain"`
}

// None builds the blueprint for "no chart".
func None(reason string) *Blueprint {
	return &Blueprint{VisualizationType: TypeNone, Description: reason}
}

// Parse decodes raw, tolerating a surrounding code fence or prose: the
// span from the first '{' to the last '}' is decoded.
func Parse(raw string) (*Blueprint, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, errors.Wrap(ErrMalformed, "no JSON object found")
	}
	var bp Blueprint
	if err := json.Unmarshal([]byte(raw[start:end+1]), &bp); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "could not decode JSON: %v", err)
	}
	return &bp, nil
}

func (b *Blueprint) IsNone() bool {
	return strings.EqualFold(strings.TrimSpace(b.VisualizationType), TypeNone)
}

// HasCode reports whether the blueprint carries non-blank code.
func (b *Blueprint) HasCode() bool {
	return b.Code != nil && strings.TrimSpace(*b.Code) != ""
}

// Validate checks the field rules: a none blueprint has only a
// description, any other has code and data.
func (b *Blueprint) Validate() error {
	if strings.TrimSpace(b.VisualizationType) == "" {
		return errors.Wrap(ErrMalformed, "visualization_type is missing")
	}
	if b.IsNone() {
		if b.Code != nil || b.Data != nil || b.PlotParameters != nil {
			return ErrNoneWithContent
		}
		if strings.TrimSpace(b.Description) == "" {
			return errors.Wrap(ErrMalformed, "description must explain why no visualization is produced")
		}
		return nil
	}
	if !b.HasCode() {
		return ErrMissingCode
	}
	if b.Data == nil {
		return ErrMissingData
	}
	return b.Data.check()
}

func (d *DataSpec) check() error {
	if isNull(d.Value) {
		return ErrMissingValue
	}
	for _, f := range Formats {
		if strings.EqualFold(d.Format, f) {
			return nil
		}
	}
	return errors.Wrapf(ErrUnsupportedFormat, "%q", d.Format)
}

// Params decodes plot_parameters. Unknown keys land in Extra.
func (b *Blueprint) Params() (PlotParameters, error) {
	var p PlotParameters
	if b.PlotParameters == nil {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(b.PlotParameters); err != nil {
		return p, errors.Wrap(err, "decode plot_parameters")
	}
	return p, nil
}

// Materialize turns the data spec into a table according to its format.
func Materialize(d *DataSpec) (*frame.Table, error) {
	if d == nil {
		return nil, ErrMissingData
	}
	if err := d.check(); err != nil {
		return nil, err
	}
	t, err := d.table()
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, ErrNoRows
	}
	return t, nil
}

func (d *DataSpec) table() (*frame.Table, error) {
	switch strings.ToLower(d.Format) {
	case FormatCSVString:
		s, err := d.stringValue()
		if err != nil {
			return nil, err
		}
		return frame.ParseCSV(s)
	case FormatJSONRecordsString:
		s, err := d.stringValue()
		if err != nil {
			return nil, err
		}
		return frame.FromRecords([]byte(s))
	case FormatJSONRecordsList:
		return frame.FromRecords(d.Value)
	case FormatDictOfLists:
		return frame.FromColumnsJSON(d.Value)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", d.Format)
}

func (d *DataSpec) stringValue() (string, error) {
	var s string
	if err := json.Unmarshal(d.Value, &s); err != nil {
		return "", errors.Wrapf(err, "%s value must be a string", d.Format)
	}
	return s, nil
}

// Marshal encodes the blueprint with its exact field names.
func (b *Blueprint) Marshal() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
