package tui

import (
	"fmt"
	"strconv"
	"strings"

	styles "github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	plot "github.com/chriskim06/drawille-go"

	"wotkit-dashboard/internal/modules/sensors/viewdata"
)

const maxBarWidth = 30

var (
	accentColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	accentFg    = styles.NewStyle().Foreground(accentColor)
	borderFg    = styles.NewStyle().Foreground(borderColor)
	errorFg     = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	paneStyle   = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			BorderForeground(borderColor)
)

// ReadingsTable renders readings as a bordered table.
func ReadingsTable(rows []viewdata.TableRow) string {
	if len(rows) == 0 {
		return "No readings"
	}
	t := table.New().
		Border(styles.NormalBorder()).
		BorderStyle(borderFg).
		Headers("ID", "Timestamp", "Value")
	for _, r := range rows {
		t.Row(strconv.FormatInt(r.ID, 10), r.TimestampISO, viewdata.FormatValue(r.Value))
	}
	return t.String()
}

// LinePlot draws series as a braille line chart w cells wide and h high.
func LinePlot(series []float64, w, h int) string {
	if len(series) == 0 || w <= 0 || h <= 0 {
		return ""
	}
	if len(series) == 1 {
		series = []float64{series[0], series[0]}
	}
	c := plot.NewCanvas(w, h)
	c.NumDataPoints = len(series)
	c.ShowAxis = true
	c.LineColors = []plot.Color{lineColor()}
	c.Fill([][]float64{series})
	return c.String()
}

// TrendPlot draws points as a braille chart, placing each Y at column X.
// Columns without a point read as zero.
func TrendPlot(points []viewdata.Point, w, h int) string {
	width := 0
	for _, p := range points {
		width = max(width, p.X+1)
	}
	if width == 0 {
		return ""
	}
	series := make([]float64, width)
	for _, p := range points {
		if p.X >= 0 {
			series[p.X] = p.Y
		}
	}
	return LinePlot(series, w, h)
}

// Histogram renders one bar per bucket, scaled to the largest magnitude.
func Histogram(buckets []viewdata.Bucket) string {
	if len(buckets) == 0 {
		return ""
	}
	labelWidth, peak := 0, 0.0
	for _, b := range buckets {
		labelWidth = max(labelWidth, len(b.Label))
		peak = max(peak, b.Magnitude)
	}
	var sb strings.Builder
	for i, b := range buckets {
		if i > 0 {
			sb.WriteByte('\n')
		}
		n := 0
		if peak > 0 {
			n = int(b.Magnitude / peak * maxBarWidth)
		}
		fmt.Fprintf(&sb, "%*s %s %s", labelWidth, b.Label, accentFg.Render(strings.Repeat("█", max(n, 1))), viewdata.FormatValue(b.Magnitude))
	}
	return sb.String()
}

func lineColor() plot.Color {
	if styles.DefaultRenderer().HasDarkBackground() {
		return plot.Red
	}
	return plot.Black
}
