package chart

import (
	"bytes"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

const (
	marginLeft   = 90
	marginRight  = 30
	marginTop    = 60
	marginBottom = 90
	legendWidth  = 170
	maxLabelLen  = 18
)

type renderer struct {
	dc  *gg.Context
	fig *Figure

	w, h                     float64
	left, right, top, bottom float64
}

// Render draws the figure on a fresh canvas.
func (f *Figure) Render() (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w, h := f.size()
	r := &renderer{
		dc:     gg.NewContext(w, h),
		fig:    f,
		w:      float64(w),
		h:      float64(h),
		left:   marginLeft,
		right:  float64(w) - marginRight,
		top:    marginTop,
		bottom: float64(h) - marginBottom,
	}
	if r.hasLegend() {
		r.right -= legendWidth
	}
	r.dc.SetRGB(1, 1, 1)
	r.dc.Clear()
	r.drawTitle()

	var err error
	switch f.Kind {
	case Pie:
		err = r.drawPie()
	default:
		err = r.drawCartesian()
	}
	if err != nil {
		return nil, err
	}
	r.drawLegend()
	return r.dc.Image(), nil
}

func (f *Figure) EncodePNG(w io.Writer) error {
	img, err := f.Render()
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	return errors.Wrap(dc.EncodePNG(w), "encode png")
}

func (f *Figure) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG renders the figure to path, creating parent directories.
func (f *Figure) SavePNG(path string) error {
	img, err := f.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create plot directory")
	}
	return errors.Wrap(gg.SavePNG(path, img), "save png")
}

func (r *renderer) hasLegend() bool {
	return r.fig.Kind == Pie || len(r.fig.Series) > 1
}

func (r *renderer) drawTitle() {
	if r.fig.Title == "" {
		return
	}
	r.dc.SetRGB(0.1, 0.1, 0.1)
	r.dc.DrawStringAnchored(r.fig.Title, r.w/2, marginTop/2, 0.5, 0.5)
}

func (r *renderer) color(i int) {
	r.dc.SetHexColor(palette[i%len(palette)])
}

func (r *renderer) drawCartesian() error {
	f := r.fig
	lo, hi := valueRange(f)
	if f.Kind == Bar || f.Kind == BarH || f.Kind == Area {
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}
	vmin, vmax, vstep := niceTicks(lo, hi, 6)

	horizontal := f.Kind == BarH
	// value -> pixel on the value axis
	vpos := func(v float64) float64 {
		t := (v - vmin) / (vmax - vmin)
		if horizontal {
			return r.left + t*(r.right-r.left)
		}
		return r.bottom - t*(r.bottom-r.top)
	}

	r.drawValueGrid(vmin, vmax, vstep, vpos, horizontal)

	switch f.Kind {
	case Scatter:
		xmin, xmax, xstep := niceTicks(xRange(f))
		xpos := func(v float64) float64 {
			return r.left + (v-xmin)/(xmax-xmin)*(r.right-r.left)
		}
		r.drawNumericXAxis(xmin, xmax, xstep, xpos)
		for i, s := range f.Series {
			r.color(i)
			for j, y := range s.Values {
				if math.IsNaN(y) || math.IsNaN(s.X[j]) {
					continue
				}
				r.dc.DrawCircle(xpos(s.X[j]), vpos(y), 4)
				r.dc.Fill()
			}
		}
	case Bar, BarH:
		r.drawCategoryAxis(horizontal)
		n := len(f.Categories)
		span := r.right - r.left
		if horizontal {
			span = r.bottom - r.top
		}
		band := span / float64(n)
		barWidth := band * 0.8 / float64(len(f.Series))
		zero := vpos(0)
		for i, s := range f.Series {
			r.color(i)
			for j, v := range s.Values {
				if math.IsNaN(v) {
					continue
				}
				offset := band*0.1 + barWidth*float64(i) + band*float64(j)
				p := vpos(v)
				if horizontal {
					y := r.top + offset
					r.dc.DrawRectangle(math.Min(zero, p), y, math.Abs(p-zero), barWidth)
				} else {
					x := r.left + offset
					r.dc.DrawRectangle(x, math.Min(zero, p), barWidth, math.Abs(p-zero))
				}
				r.dc.Fill()
			}
		}
	case Line, Area:
		r.drawCategoryAxis(false)
		n := len(f.Categories)
		band := (r.right - r.left) / float64(n)
		cx := func(j int) float64 { return r.left + band*(float64(j)+0.5) }
		for i, s := range f.Series {
			if f.Kind == Area {
				r.color(i)
				r.dc.MoveTo(cx(0), vpos(0))
				for j, v := range s.Values {
					if math.IsNaN(v) {
						v = 0
					}
					r.dc.LineTo(cx(j), vpos(v))
				}
				r.dc.LineTo(cx(n-1), vpos(0))
				r.dc.ClosePath()
				r.dc.Push()
				c := palette[i%len(palette)]
				r.dc.SetHexColor(c + "55")
				r.dc.Fill()
				r.dc.Pop()
			}
			r.color(i)
			r.dc.SetLineWidth(2)
			started := false
			for j, v := range s.Values {
				if math.IsNaN(v) {
					started = false
					continue
				}
				if !started {
					r.dc.MoveTo(cx(j), vpos(v))
					started = true
				} else {
					r.dc.LineTo(cx(j), vpos(v))
				}
			}
			r.dc.Stroke()
			for j, v := range s.Values {
				if !math.IsNaN(v) {
					r.dc.DrawCircle(cx(j), vpos(v), 3)
					r.dc.Fill()
				}
			}
		}
	}
	r.drawAxisLabels()
	return nil
}

func (r *renderer) drawValueGrid(vmin, vmax, step float64, pos func(float64) float64, horizontal bool) {
	dc := r.dc
	dc.SetLineWidth(1)
	for v := vmin; v <= vmax+step/2; v += step {
		p := pos(v)
		dc.SetRGB(0.9, 0.9, 0.9)
		if horizontal {
			dc.DrawLine(p, r.top, p, r.bottom)
		} else {
			dc.DrawLine(r.left, p, r.right, p)
		}
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		label := formatTick(v, step)
		if horizontal {
			dc.DrawStringAnchored(label, p, r.bottom+14, 0.5, 0.5)
		} else {
			dc.DrawStringAnchored(label, r.left-8, p, 1, 0.5)
		}
	}
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawLine(r.left, r.bottom, r.right, r.bottom)
	dc.DrawLine(r.left, r.top, r.left, r.bottom)
	dc.Stroke()
}

func (r *renderer) drawNumericXAxis(xmin, xmax, step float64, pos func(float64) float64) {
	dc := r.dc
	dc.SetRGB(0.2, 0.2, 0.2)
	for v := xmin; v <= xmax+step/2; v += step {
		p := pos(v)
		dc.DrawLine(p, r.bottom, p, r.bottom+5)
		dc.Stroke()
		dc.DrawStringAnchored(formatTick(v, step), p, r.bottom+16, 0.5, 0.5)
	}
}

func (r *renderer) drawCategoryAxis(horizontal bool) {
	dc := r.dc
	cats := r.fig.Categories
	n := len(cats)
	if n == 0 {
		return
	}
	dc.SetRGB(0.2, 0.2, 0.2)
	if horizontal {
		band := (r.bottom - r.top) / float64(n)
		for j, c := range cats {
			y := r.top + band*(float64(j)+0.5)
			dc.DrawStringAnchored(shorten(c), r.left-8, y, 1, 0.5)
		}
		return
	}
	band := (r.right - r.left) / float64(n)
	rotate := n > 8
	for _, c := range cats {
		if w, _ := dc.MeasureString(shorten(c)); w > band {
			rotate = true
			break
		}
	}
	for j, c := range cats {
		x := r.left + band*(float64(j)+0.5)
		y := r.bottom + 14
		if rotate {
			dc.Push()
			dc.RotateAbout(gg.Radians(-35), x, y)
			dc.DrawStringAnchored(shorten(c), x, y, 1, 0.5)
			dc.Pop()
		} else {
			dc.DrawStringAnchored(shorten(c), x, y, 0.5, 0.5)
		}
	}
}

func (r *renderer) drawAxisLabels() {
	dc := r.dc
	dc.SetRGB(0.1, 0.1, 0.1)
	if r.fig.XLabel != "" {
		dc.DrawStringAnchored(r.fig.XLabel, (r.left+r.right)/2, r.h-18, 0.5, 0.5)
	}
	if r.fig.YLabel != "" {
		x, y := 20.0, (r.top+r.bottom)/2
		dc.Push()
		dc.RotateAbout(gg.Radians(-90), x, y)
		dc.DrawStringAnchored(r.fig.YLabel, x, y, 0.5, 0.5)
		dc.Pop()
	}
}

func (r *renderer) drawPie() error {
	values := r.fig.Series[0].Values
	total := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
		}
	}
	if total <= 0 {
		return errors.New("pie values sum to zero")
	}
	dc := r.dc
	cx, cy := (r.left+r.right)/2, (r.top+r.bottom)/2
	radius := math.Min(r.right-r.left, r.bottom-r.top) / 2 * 0.9
	start := -math.Pi / 2
	for i, v := range values {
		if math.IsNaN(v) || v == 0 {
			continue
		}
		sweep := v / total * 2 * math.Pi
		r.color(i)
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, radius, start, start+sweep)
		dc.ClosePath()
		dc.Fill()
		if pct := v / total * 100; pct >= 3 {
			mid := start + sweep/2
			dc.SetRGB(1, 1, 1)
			dc.DrawStringAnchored(strconv.FormatFloat(pct, 'f', 1, 64)+"%",
				cx+math.Cos(mid)*radius*0.65, cy+math.Sin(mid)*radius*0.65, 0.5, 0.5)
		}
		start += sweep
	}
	return nil
}

func (r *renderer) drawLegend() {
	if !r.hasLegend() {
		return
	}
	var labels []string
	if r.fig.Kind == Pie {
		labels = r.fig.Categories
	} else {
		for _, s := range r.fig.Series {
			labels = append(labels, s.Name)
		}
	}
	dc := r.dc
	x := r.w - legendWidth
	y := r.top
	for i, l := range labels {
		r.color(i)
		dc.DrawRectangle(x, y, 12, 12)
		dc.Fill()
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(shorten(l), x+18, y+6, 0, 0.5)
		y += 20
		if y > r.bottom {
			break
		}
	}
}

func valueRange(f *Figure) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range f.Series {
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return fixRange(lo, hi)
}

func xRange(f *Figure) (float64, float64, int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range f.Series {
		for _, v := range s.X {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	lo, hi = fixRange(lo, hi)
	return lo, hi, 6
}

func fixRange(lo, hi float64) (float64, float64) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	if lo == hi {
		return lo - 1, hi + 1
	}
	return lo, hi
}

// niceTicks widens [lo, hi] to round tick boundaries.
func niceTicks(lo, hi float64, n int) (float64, float64, float64) {
	span := niceNum(hi-lo, false)
	step := niceNum(span/float64(n-1), true)
	return math.Floor(lo/step) * step, math.Ceil(hi/step) * step, step
}

func niceNum(x float64, round bool) float64 {
	exp := math.Floor(math.Log10(x))
	f := x / math.Pow(10, exp)
	var nf float64
	if round {
		switch {
		case f < 1.5:
			nf = 1
		case f < 3:
			nf = 2
		case f < 7:
			nf = 5
		default:
			nf = 10
		}
	} else {
		switch {
		case f <= 1:
			nf = 1
		case f <= 2:
			nf = 2
		case f <= 5:
			nf = 5
		default:
			nf = 10
		}
	}
	return nf * math.Pow(10, exp)
}

func formatTick(v, step float64) string {
	decimals := 0
	if step < 1 {
		decimals = int(math.Ceil(-math.Log10(step)))
	}
	if math.Abs(v) < step/1e6 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func shorten(s string) string {
	rs := []rune(s)
	if len(rs) <= maxLabelLen {
		return s
	}
	return string(rs[:maxLabelLen-1]) + "…"
}
