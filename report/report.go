// Package report assembles the final answer: the analyst's findings and the
// outcome of rendering the visualizer's blueprint.
package report

import (
	"strings"
	"time"

	"github.com/antgroup/datacrew/frame"
	"github.com/antgroup/datacrew/handoff"
)

type Status string

const (
	StatusRendered      Status = "rendered"
	StatusNotApplicable Status = "not_applicable"
	StatusError         Status = "error"
)

type ImageSource string

const (
	SourceBlob ImageSource = "blob"
	SourceFile ImageSource = "file"
)

// Image is a rendered chart. PNG is always set; Path only when Source is
// SourceFile.
type Image struct {
	Source ImageSource
	PNG    []byte
	Path   string
}

func (i *Image) MIME() string { return "image/png" }

// Outcome is the result of the visualization step.
type Outcome struct {
	Status      Status
	Message     string
	Title       string
	Description string
	Kind        string
	Image       *Image
	// Code and Data are kept on failure for debugging.
	Code string
	Data *frame.Table
}

func (o Outcome) OK() bool { return o.Status != StatusError }

// Section is a piece of the analyst's prose, optionally followed by a text
// table it contained.
type Section struct {
	Markdown string
	Table    *frame.Table
	RawTable string
}

type Report struct {
	Query    string
	Analysis string
	Sections []Section
	// Table is the analyst's visualization data, when present.
	Table         *frame.Table
	NoDataReason  string
	Visualization Outcome
	// Note is the reporter agent's closing remark, if one ran.
	Note      string
	CreatedAt time.Time
}

// NewAnalysis fills the analyst part of a report from the raw blob. It
// never fails: an unparseable blob is kept verbatim.
func NewAnalysis(blob string) *Report {
	r := &Report{CreatedAt: time.Now()}
	h, err := handoff.Parse(blob)
	if err != nil {
		r.Analysis = strings.TrimSpace(blob)
		r.NoDataReason = err.Error()
		r.Sections = splitSections(r.Analysis)
		return r
	}
	r.Analysis = h.Text
	r.Sections = splitSections(h.Text)
	if t, err := h.Table(); err == nil {
		r.Table = t
	} else {
		r.NoDataReason = h.Reason()
	}
	return r
}

// splitSections cuts ```text blocks out of the prose and tries to read
// each as a whitespace separated table.
func splitSections(text string) []Section {
	parts := strings.Split(text, "```text")
	sections := []Section{{Markdown: strings.TrimSpace(parts[0])}}
	for _, p := range parts[1:] {
		block, after, _ := strings.Cut(p, "```")
		raw := strings.TrimSpace(block)
		s := Section{RawTable: raw}
		if raw != "" {
			if t, err := frame.ParseWhitespace(raw); err == nil && t.Len() > 0 {
				s.Table = t
			}
		}
		sections = append(sections, s)
		if after = strings.TrimSpace(after); after != "" {
			sections = append(sections, Section{Markdown: after})
		}
	}
	return sections
}
