// Package render draws evaluated processes as PNG charts. It only
// visualizes sigma.Result values and never validates or recomputes them.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/stat/distuv"

	"sigmachart/internal/sigma"
)

// Label colors are fixed: RED -> red, YELLOW -> amber, GREEN -> green.
var labelColors = map[sigma.Label]drawing.Color{
	sigma.LabelRed:    {R: 0xE6, G: 0x3B, B: 0x2E, A: 0xFF},
	sigma.LabelYellow: {R: 0xF5, G: 0xB8, B: 0x00, A: 0xFF},
	sigma.LabelGreen:  {R: 0x2E, G: 0xA0, B: 0x44, A: 0xFF},
}

// Density curve extent. Matches the displayed window of N(1.5, 1); sigma
// levels outside it are clamped for drawing only.
const (
	curveXMin = -3
	curveXMax = 6
)

// Options sizes the rendered image.
type Options struct {
	Width  int
	Height int
}

// Renderer produces PNG charts from evaluation results. It is stateless
// and safe for concurrent use.
type Renderer struct {
	opts Options
	dist distuv.Normal
}

// New builds a Renderer. Zero dimensions fall back to 800x320.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 320
	}
	return &Renderer{
		opts: opts,
		dist: distuv.Normal{Mu: sigma.Shift, Sigma: 1},
	}
}

// Render draws one or more results into a single PNG. A single result is
// drawn as a density curve with the tail beyond its sigma level filled in
// the label color; multiple results compose into a bar chart with one
// label-colored bar per process.
func (r *Renderer) Render(results []sigma.Result) ([]byte, error) {
	switch len(results) {
	case 0:
		return nil, errors.New("no results to render")
	case 1:
		return r.renderCurve(results[0])
	default:
		return r.renderBars(results)
	}
}

func (r *Renderer) renderCurve(res sigma.Result) ([]byte, error) {
	xs, ys := r.densitySeries(curveXMin, curveXMax)
	yMax := r.dist.Prob(sigma.Shift) + 0.03

	// Tail area from the clamped sigma level to the right edge.
	fillFrom := math.Max(curveXMin, math.Min(res.Sigma, curveXMax))
	fillXs, fillYs := r.densitySeries(fillFrom, curveXMax)

	col := labelColors[res.Label]
	title := fmt.Sprintf("Process(tests=%d, fails=%d", res.Tests, res.Fails)
	if res.Name != "" {
		title += fmt.Sprintf(", name=%s", res.Name)
	}
	title += ")"

	ch := chart.Chart{
		Title:      title,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 8}},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: curveXMin, Max: curveXMax},
			Ticks: curveTicks(),
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    fmt.Sprintf("N(mu = %.1f, sigma = 1)", sigma.Shift),
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.2},
			},
			chart.ContinuousSeries{
				Name:    fmt.Sprintf("Defect rate = %.2f%%", res.DefectRate*100),
				XValues: fillXs,
				YValues: fillYs,
				Style: chart.Style{
					StrokeColor: col,
					StrokeWidth: 1.0,
					FillColor:   col.WithAlpha(112),
				},
			},
			chart.AnnotationSeries{
				Annotations: []chart.Value2{
					{XValue: fillFrom, YValue: r.dist.Prob(fillFrom), Label: fmt.Sprintf("sigma = %.3f", res.Sigma)},
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render sigma curve: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) renderBars(results []sigma.Result) ([]byte, error) {
	yMax := 7.0
	bars := make([]chart.Value, len(results))
	for i, res := range results {
		if res.Sigma+1 > yMax {
			yMax = res.Sigma + 1
		}
		col := labelColors[res.Label]
		// Bar heights are display-only; negative sigma levels draw as a
		// sliver at the baseline while the true value stays in the
		// response metadata.
		v := res.Sigma
		if v < 0.05 {
			v = 0.05
		}
		bars[i] = chart.Value{
			Value: v,
			Label: res.Name,
			Style: chart.Style{FillColor: col, StrokeColor: col},
		}
	}

	ch := chart.BarChart{
		Title:      "Sigma level by process",
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 8}},
		BarWidth:   barWidth(r.opts.Width, len(results)),
		YAxis: chart.YAxis{
			Name:  "sigma",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render sigma bars: %w", err)
	}
	return buf.Bytes(), nil
}

// densitySeries samples the shifted normal pdf on [from, to] at a fixed
// 0.01 step so identical inputs always produce identical series.
func (r *Renderer) densitySeries(from, to float64) ([]float64, []float64) {
	const step = 0.01
	n := int(math.Round((to-from)/step)) + 1
	if n < 2 {
		n = 2
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		x := from + float64(i)*step
		if x > to {
			x = to
		}
		xs[i] = x
		ys[i] = r.dist.Prob(x)
	}
	// Ensure the series ends exactly on the right edge.
	xs[n-1] = to
	ys[n-1] = r.dist.Prob(to)
	return xs, ys
}

func curveTicks() []chart.Tick {
	// Integer ticks across the window plus one at the distribution mean,
	// kept in ascending order.
	ticks := make([]chart.Tick, 0, curveXMax-curveXMin+2)
	for v := curveXMin; v <= curveXMax; v++ {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: fmt.Sprintf("%d", v)})
		if float64(v) < sigma.Shift && float64(v+1) > sigma.Shift {
			ticks = append(ticks, chart.Tick{Value: sigma.Shift, Label: fmt.Sprintf("%.1f", sigma.Shift)})
		}
	}
	return ticks
}

func barWidth(chartWidth, bars int) int {
	if bars == 0 {
		return 60
	}
	w := chartWidth / (2 * bars)
	if w < 20 {
		w = 20
	}
	if w > 80 {
		w = 80
	}
	return w
}
