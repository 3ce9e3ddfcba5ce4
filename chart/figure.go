// Package chart describes figures built by plotting scripts and renders them
// to PNG. A Figure is a plain value; every render gets its own drawing
// context.
package chart

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	Bar     Kind = "bar"
	BarH    Kind = "barh"
	Line    Kind = "line"
	Scatter Kind = "scatter"
	Pie     Kind = "pie"
	Area    Kind = "area"
)

var Kinds = []Kind{Bar, BarH, Line, Scatter, Pie, Area}

const (
	DefaultWidth  = 900
	DefaultHeight = 560
)

type Series struct {
	Name   string
	Values []float64
	// X holds numeric x positions; only scatter uses it.
	X []float64
}

type Figure struct {
	Kind       Kind
	Title      string
	XLabel     string
	YLabel     string
	Categories []string
	Series     []Series
	Width      int
	Height     int
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	switch s {
	case "bar_chart", "column":
		return Bar, nil
	case "line_chart":
		return Line, nil
	case "pie_chart":
		return Pie, nil
	case "horizontal_bar":
		return BarH, nil
	case "scatter_plot":
		return Scatter, nil
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

func (f *Figure) Validate() error {
	if _, err := ParseKind(string(f.Kind)); err != nil {
		return err
	}
	if len(f.Series) == 0 {
		return ErrNoSeries
	}
	for _, s := range f.Series {
		if f.Kind == Scatter {
			if len(s.X) != len(s.Values) {
				return errors.Wrapf(ErrShape, "series %q has %d x and %d y values", s.Name, len(s.X), len(s.Values))
			}
			continue
		}
		if len(s.Values) != len(f.Categories) {
			return errors.Wrapf(ErrShape, "series %q has %d values for %d categories", s.Name, len(s.Values), len(f.Categories))
		}
	}
	if f.Kind == Pie {
		for _, v := range f.Series[0].Values {
			if v < 0 {
				return fmt.Errorf("pie values must be non-negative, got %v", v)
			}
		}
	}
	return nil
}

func (f *Figure) size() (int, int) {
	w, h := f.Width, f.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func (f *Figure) String() string {
	return fmt.Sprintf("<Figure %s %q: %d series, %d categories>", f.Kind, f.Title, len(f.Series), len(f.Categories))
}
