// Package handoff splits the analyst output into prose for the reader and
// a CSV table for the visualizer.
package handoff

import (
	"strings"

	"github.com/antgroup/datacrew/frame"
	"github.com/antgroup/datacrew/utils/json"
	"github.com/pkg/errors"
)

// Marker must appear alone on its line. Matching is case and spacing
// sensitive.
const Marker = "=== DATA FOR VISUALIZATION (CSV) ==="

type Handoff struct {
	// Text is everything before the marker, or the whole blob without one.
	Text string
	// CSV is the section after the marker with code fences removed.
	CSV       string
	HasMarker bool
	// Envelope is set when the blob was the JSON form.
	Envelope bool
}

// Envelope is the structured alternative to the marker form.
type Envelope struct {
	Summary   string `json:"summary"`
	DataTable string `json:"data_table"`
}

// Split cuts blob at the marker line.
func Split(blob string) (Handoff, error) {
	lines := strings.Split(blob, "\n")
	at := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != Marker {
			continue
		}
		if at >= 0 {
			return Handoff{}, ErrDuplicateMarker
		}
		at = i
	}
	if at < 0 {
		return Handoff{Text: strings.TrimSpace(blob)}, nil
	}
	return Handoff{
		Text:      strings.TrimSpace(strings.Join(lines[:at], "\n")),
		CSV:       stripFences(strings.Join(lines[at+1:], "\n")),
		HasMarker: true,
	}, nil
}

// Parse accepts either the JSON envelope or the marker form.
func Parse(blob string) (Handoff, error) {
	trimmed := strings.TrimSpace(blob)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```") {
		raw := json.TrimJsonString(trimmed)
		var env Envelope
		if raw != "" && json.Unmarshal([]byte(raw), &env) == nil && (env.Summary != "" || env.DataTable != "") {
			return Handoff{
				Text:      strings.TrimSpace(env.Summary),
				CSV:       stripFences(env.DataTable),
				HasMarker: env.DataTable != "",
				Envelope:  true,
			}, nil
		}
	}
	return Split(blob)
}

// Table parses the data section. ErrNoData is returned when there is no
// marker, the section is empty, or it only states why nothing was produced.
func (h Handoff) Table() (*frame.Table, error) {
	if !h.HasMarker || h.CSV == "" {
		return nil, ErrNoData
	}
	if noDataNote(h.CSV) {
		return nil, errors.Wrap(ErrNoData, firstLine(h.CSV))
	}
	t, err := frame.ParseCSV(h.CSV)
	if err != nil {
		return nil, errors.Wrap(err, "parse visualization data")
	}
	return t, nil
}

// Reason explains a missing data section using the analyst's own words:
// the note after the marker if any, else the last paragraph of the text.
func (h Handoff) Reason() string {
	if h.HasMarker && noDataNote(h.CSV) {
		return firstLine(h.CSV)
	}
	paras := strings.Split(h.Text, "\n\n")
	for i := len(paras) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(paras[i]); p != "" {
			return p
		}
	}
	return "the analysis produced no data for visualization"
}

// Compose builds a blob in the marker form. A nil table yields prose only.
func Compose(text string, t *frame.Table) string {
	text = strings.TrimSpace(text)
	if t == nil {
		return text
	}
	return text + "\n\n" + Marker + "\n" + t.ToCSV()
}

// ComposeEnvelope builds the JSON form.
func ComposeEnvelope(text string, t *frame.Table) (string, error) {
	env := Envelope{Summary: strings.TrimSpace(text)}
	if t != nil {
		env.DataTable = t.ToCSV()
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func noDataNote(section string) bool {
	return strings.HasPrefix(strings.ToLower(firstLine(section)), "no data")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func stripFences(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
