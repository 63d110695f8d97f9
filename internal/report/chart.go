package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// stages are the per-class counts charted, in legend order.
var stages = []struct {
	name  string
	value func(ClassCount) int
}{
	{"raw", func(c ClassCount) int { return c.Raw }},
	{"mirrored", func(c ClassCount) int { return c.Mirrored }},
	{"train", func(c ClassCount) int { return c.Train }},
	{"val", func(c ClassCount) int { return c.Val }},
	{"test", func(c ClassCount) int { return c.Test }},
}

// Plot saves a grouped bar chart of the per-class counts. The image format
// follows the extension of path (.png, .svg, .pdf).
func (s *Stats) Plot(path string) error {
	if len(s.Classes) == 0 {
		return fmt.Errorf("no classes to plot")
	}

	p := plot.New()
	p.Title.Text = "Samples per class"
	p.Y.Label.Text = "Files"
	p.Legend.Top = true

	barWidth := vg.Points(8)
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Label
	}

	for i, ser := range stages {
		values := make(plotter.Values, len(s.Classes))
		for j, c := range s.Classes {
			values[j] = float64(ser.value(c))
		}

		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return fmt.Errorf("%s bars: %w", ser.name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(i-len(stages)/2)

		p.Add(bars)
		p.Legend.Add(ser.name, bars)
	}
	p.NominalX(names...)

	width := vg.Length(len(s.Classes)) * barWidth * vg.Length(len(stages)+2)
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}

	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
