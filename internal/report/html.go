package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders the per-class counts as an interactive bar chart page.
func (s *Stats) WriteHTML(w io.Writer) error {
	if len(s.Classes) == 0 {
		return fmt.Errorf("no classes to chart")
	}

	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Label
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Dataset statistics", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Samples per class", Subtitle: fmt.Sprintf("classes=%d raw=%d", len(s.Classes), s.Total.Raw)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names)

	for _, st := range stages {
		data := make([]opts.BarData, len(s.Classes))
		for i, c := range s.Classes {
			data[i] = opts.BarData{Value: st.value(c)}
		}
		bar.AddSeries(st.name, data)
	}

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
