package workload

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveCSV writes one row per call: index, name, latency and timestamp in
// seconds, and the error if any.
func SaveCSV(metrics []Metric, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"OperationIndex", "Name", "Latency", "Timestamp", "Error"})
	for _, m := range metrics {
		w.Write([]string{
			strconv.Itoa(m.OperationIndex),
			m.Name,
			strconv.FormatFloat(m.Latency.Seconds(), 'f', 6, 64),
			strconv.FormatFloat(m.Timestamp.Seconds(), 'f', 6, 64),
			m.Err,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// PlotLatency renders per-call latency in milliseconds against the operation
// index. The image format follows the file extension.
func PlotLatency(metrics []Metric, path string) error {
	p := plot.New()
	p.Title.Text = "GetUserInfo latency"
	p.X.Label.Text = "Operation"
	p.Y.Label.Text = "Latency (ms)"

	pts := make(plotter.XYs, len(metrics))
	for i, m := range metrics {
		pts[i].X = float64(m.OperationIndex)
		pts[i].Y = float64(m.Latency.Microseconds()) / 1000
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building latency line: %w", err)
	}
	p.Add(plotter.NewGrid(), line)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving latency plot: %w", err)
	}
	return nil
}
