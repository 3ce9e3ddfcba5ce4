package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antgroup/datacrew/frame"
	"github.com/pkg/errors"
	"github.com/russross/blackfriday/v2"
	"github.com/xuri/excelize/v2"
)

func markdownToHTML(md string) []byte {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
	return blackfriday.Run([]byte(md), blackfriday.WithRenderer(renderer))
}

// MarkdownToText renders markdown and keeps the visible text.
func MarkdownToText(md string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markdownToHTML(md)))
	if err != nil {
		return md
	}
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\t")
	})
	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// WriteText writes a plain text rendering for terminals.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder
	if r.Query != "" {
		fmt.Fprintf(&sb, "Query: %s\n\n", r.Query)
	}
	sb.WriteString("== Analytical Insights ==\n\n")
	for _, s := range r.Sections {
		if s.Markdown != "" {
			sb.WriteString(MarkdownToText(s.Markdown))
			sb.WriteString("\n\n")
		}
		switch {
		case s.Table != nil:
			sb.WriteString(s.Table.String())
			sb.WriteString("\n\n")
		case s.RawTable != "":
			sb.WriteString(s.RawTable)
			sb.WriteString("\n\n")
		}
	}
	if r.Table != nil {
		sb.WriteString("Data for visualization:\n")
		sb.WriteString(r.Table.String())
		sb.WriteString("\n\n")
	}
	sb.WriteString("== Data Visualization ==\n\n")
	v := r.Visualization
	switch v.Status {
	case StatusRendered:
		if v.Title != "" {
			fmt.Fprintf(&sb, "%s\n", v.Title)
		}
		if v.Description != "" {
			fmt.Fprintf(&sb, "%s\n", v.Description)
		}
		switch {
		case v.Image == nil:
		case v.Image.Path != "":
			fmt.Fprintf(&sb, "Chart saved to %s\n", v.Image.Path)
		default:
			fmt.Fprintf(&sb, "Chart rendered (%d bytes PNG)\n", len(v.Image.PNG))
		}
	default:
		if v.Message != "" {
			sb.WriteString(v.Message)
			sb.WriteString("\n")
		}
	}
	if r.Note != "" {
		sb.WriteString("\n")
		sb.WriteString(MarkdownToText(r.Note))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

type tableView struct {
	Columns []string
	Rows    [][]string
}

func newTableView(t *frame.Table) *tableView {
	if t == nil {
		return nil
	}
	v := &tableView{Columns: t.Columns()}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = frame.FormatCell(c)
		}
		v.Rows = append(v.Rows, cells)
	}
	return v
}

type sectionView struct {
	HTML  template.HTML
	Table *tableView
	Raw   string
}

type reportView struct {
	Query         string
	Sections      []sectionView
	Table         *tableView
	Status        string
	Message       string
	Title         string
	Description   string
	ImageURI      template.URL
	ImagePath     string
	Code          string
	Data          *tableView
	Rendered      bool
	NotApplicable bool
	Note          template.HTML
}

var fragment = template.Must(template.New("report").Parse(`<article class="report">
{{- if .Query}}<p class="query">{{.Query}}</p>{{end}}
<section class="analysis">
<h2>Analytical Insights</h2>
{{range .Sections}}{{.HTML}}{{if .Table}}{{template "table" .Table}}{{else if .Raw}}<pre>{{.Raw}}</pre>{{end}}
{{end}}{{if .Table}}<h4>Data for visualization</h4>
{{template "table" .Table}}{{end}}
</section>
<hr>
<section class="visualization status-{{.Status}}">
<h2>Data Visualization</h2>
{{if .Rendered}}{{if .Title}}<h3>{{.Title}}</h3>{{end}}{{if .Description}}<p><em>{{.Description}}</em></p>{{end}}
<img alt="{{.Title}}" src="{{.ImageURI}}">{{if .ImagePath}}
<p class="path">{{.ImagePath}}</p>{{end}}
{{else if .NotApplicable}}<p class="info">{{.Message}}</p>
{{else}}<p class="error">{{.Message}}</p>{{if .Code}}
<details><summary>Failed visualization code</summary><pre>{{.Code}}</pre></details>{{end}}{{if .Data}}
<details><summary>Data passed to the code</summary>{{template "table" .Data}}</details>{{end}}
{{end}}</section>
{{- if .Note}}
<section class="note">{{.Note}}</section>{{end}}
</article>
{{define "table"}}<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead><tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody></table>{{end}}`))

// WriteHTML writes the report as an HTML fragment with the chart inlined.
func (r *Report) WriteHTML(w io.Writer) error {
	v := r.Visualization
	view := reportView{
		Query:         r.Query,
		Table:         newTableView(r.Table),
		Status:        string(v.Status),
		Message:       v.Message,
		Title:         v.Title,
		Description:   v.Description,
		Code:          v.Code,
		Data:          newTableView(v.Data),
		Rendered:      v.Status == StatusRendered && v.Image != nil,
		NotApplicable: v.Status == StatusNotApplicable,
	}
	if r.Note != "" {
		view.Note = template.HTML(markdownToHTML(r.Note))
	}
	for _, s := range r.Sections {
		view.Sections = append(view.Sections, sectionView{
			HTML:  template.HTML(markdownToHTML(s.Markdown)),
			Table: newTableView(s.Table),
			Raw:   s.RawTable,
		})
	}
	if view.Rendered {
		view.ImageURI = template.URL("data:" + v.Image.MIME() + ";base64," + base64.StdEncoding.EncodeToString(v.Image.PNG))
		view.ImagePath = v.Image.Path
	}
	return errors.Wrap(fragment.Execute(w, view), "render html report")
}

// WriteXLSX exports the report tables as a workbook: a summary sheet, the
// visualization data and every text table found in the analysis.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	rows := [][]any{
		{"query", r.Query},
		{"created_at", r.CreatedAt.Format("2006-01-02 15:04:05")},
		{"visualization_status", string(r.Visualization.Status)},
		{"visualization_message", r.Visualization.Message},
		{"analysis", r.Analysis},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return err
		}
	}
	if r.Table != nil {
		if err := writeSheet(f, "Data", r.Table); err != nil {
			return err
		}
	}
	n := 0
	for _, s := range r.Sections {
		if s.Table == nil {
			continue
		}
		n++
		if err := writeSheet(f, fmt.Sprintf("Table %d", n), s.Table); err != nil {
			return err
		}
	}
	return errors.Wrap(f.Write(w), "write workbook")
}

func writeSheet(f *excelize.File, name string, t *frame.Table) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	header := make([]any, 0, t.Width())
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := t.Row(i)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
