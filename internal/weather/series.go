package weather

import (
	"strconv"
	"strings"
)

// Point is a plot coordinate with the origin at the top-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Chart describes the drawing area of a line chart.
type Chart struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding float64 `json:"padding"`
}

// DefaultChart is the fixed-height chart used by the hourly trend.
var DefaultChart = Chart{Width: 300, Height: 200, Padding: 30}

// Baseline returns the y coordinate of the plot's bottom edge.
func (c Chart) Baseline() float64 {
	return c.Height - c.Padding
}

// Scale maps values onto the chart. See Scale.
func (c Chart) Scale(values []float64) []Point {
	return Scale(values, c.Width, c.Height, c.Padding)
}

// Scale maps an ordered series onto plot coordinates. x is interpolated by index across
// [padding, width-padding]; y is interpolated by normalized value across
// [padding, height-padding], inverted so larger values plot higher. A constant series uses a
// denominator of 1 and a single value is centred horizontally.
func Scale(values []float64, width, height, padding float64) []Point {
	n := len(values)
	if n == 0 {
		return nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	den := hi - lo
	if den == 0 {
		den = 1
	}

	innerW := width - 2*padding
	innerH := height - 2*padding

	points := make([]Point, n)
	for i, v := range values {
		x := width / 2
		if n > 1 {
			x = padding + float64(i)*innerW/float64(n-1)
		}
		points[i] = Point{
			X: x,
			Y: height - padding - (v-lo)/den*innerH,
		}
	}
	return points
}

// LinePath builds an SVG path through points.
func LinePath(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(formatCoord(p.X))
		b.WriteByte(' ')
		b.WriteString(formatCoord(p.Y))
	}
	return b.String()
}

// AreaPath builds the closed fill path under the line, down to the baseline.
func AreaPath(points []Point, baseline float64) string {
	if len(points) == 0 {
		return ""
	}
	first, last := points[0], points[len(points)-1]
	return LinePath(points) +
		" L " + formatCoord(last.X) + " " + formatCoord(baseline) +
		" L " + formatCoord(first.X) + " " + formatCoord(baseline) + " Z"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
