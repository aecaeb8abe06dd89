// Package charts renders recorded sessions: a static PNG with gonum/plot
// and an interactive HTML page with go-echarts.
package charts

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// DefaultMaxPoints bounds the samples per series in HTML output.
const DefaultMaxPoints = 2000

var (
	setpointColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	gyroColor     = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	sumColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// Downsample keeps every kth frame so that at most max remain. max <= 0
// returns frames unchanged.
func Downsample(frames []blackbox.Frame, max int) []blackbox.Frame {
	if max <= 0 || len(frames) <= max {
		return frames
	}
	k := (len(frames) + max - 1) / max
	out := make([]blackbox.Frame, 0, max)
	for i := 0; i < len(frames); i += k {
		out = append(out, frames[i])
	}
	return out
}

// elapsedMs returns each frame's time since the first frame.
func elapsedMs(frames []blackbox.Frame) []float64 {
	xs := make([]float64, len(frames))
	for i, f := range frames {
		d := timeutil.CmpTimeUs(timeutil.TimeUs(f.TimeUs), timeutil.TimeUs(frames[0].TimeUs))
		xs[i] = float64(d) / 1000
	}
	return xs
}

type series struct {
	name  string
	color color.Color
	value func(f blackbox.Frame, axis pid.Axis) float32
}

var axisSeries = []series{
	{"setpoint", setpointColor, func(f blackbox.Frame, a pid.Axis) float32 { return f.Setpoint[a] }},
	{"gyro", gyroColor, func(f blackbox.Frame, a pid.Axis) float32 { return f.Gyro[a] }},
	{"pid sum", sumColor, func(f blackbox.Frame, a pid.Axis) float32 { return f.Sum[a] }},
}

const (
	pngWidth  = 14 * vg.Inch
	pngHeight = 10 * vg.Inch
)

// WritePNG draws one panel per axis, each with setpoint, gyro and PID sum
// against time.
func WritePNG(w io.Writer, title string, frames []blackbox.Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to plot")
	}
	xs := elapsedMs(frames)

	plots := make([][]*plot.Plot, pid.AxisCount)
	for _, axis := range pid.Axes {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s - %s", title, axisName(axis))
		p.X.Label.Text = "Time (ms)"
		p.Y.Label.Text = "deg/s"
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		for _, s := range axisSeries {
			pts := make(plotter.XYs, len(frames))
			for i, f := range frames {
				pts[i] = plotter.XY{X: xs[i], Y: float64(s.value(f, axis))}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("%s %s: %w", axisName(axis), s.name, err)
			}
			line.Color = s.color
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(s.name, line)
		}
		plots[axis] = []*plot.Plot{p}
	}

	img := vgimg.New(pngWidth, pngHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: pid.AxisCount, Cols: 1, PadY: vg.Millimeter * 4, PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

func axisName(axis pid.Axis) string {
	switch axis {
	case pid.AxisRoll:
		return "Roll"
	case pid.AxisPitch:
		return "Pitch"
	case pid.AxisYaw:
		return "Yaw"
	}
	return axis.String()
}

// HTMLOptions configures WriteHTML.
type HTMLOptions struct {
	Title      string
	Subtitle   string
	MaxPoints  int    // 0 uses DefaultMaxPoints
	AssetsHost string // empty uses the go-echarts default CDN
}

// WriteHTML renders an interactive page with one line chart per axis.
func WriteHTML(w io.Writer, frames []blackbox.Frame, o HTMLOptions) error {
	maxPoints := o.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	frames = Downsample(frames, maxPoints)
	xs := elapsedMs(frames)
	labels := make([]string, len(xs))
	for i, x := range xs {
		labels[i] = fmt.Sprintf("%.1f", x)
	}

	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.PageTitle = o.Title

	for _, axis := range pid.Axes {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "360px", AssetsHost: o.AssetsHost}),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s - %s", o.Title, axisName(axis)), Subtitle: o.Subtitle}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "ms", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "deg/s"}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		)
		line.SetXAxis(labels)
		for _, s := range axisSeries {
			data := make([]opts.LineData, len(frames))
			for i, f := range frames {
				data[i] = opts.LineData{Value: s.value(f, axis)}
			}
			line.AddSeries(s.name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		}
		page.AddCharts(line)
	}
	return page.Render(w)
}
