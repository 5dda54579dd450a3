// Command buildGraph renders the sessions written by bench -json as PNG charts:
// one throughput-versus-concurrency line chart per GOMAXPROCS value and one
// bar chart comparing the best run of every implementation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BenchmarkResult mirrors the bench JSON schema.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            int     `json:"capacity"`
	NumMessages         int64   `json:"num_messages"`
	NumMessagesConsumed int64   `json:"num_messages_consumed"`
	TestDuration        string  `json:"test_duration"`
	ActualElapsed       string  `json:"actual_elapsed"`
	Throughput          float64 `json:"throughput_msgs_sec"`
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

var (
	background = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	foreground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file: %v\n", err)
		os.Exit(1)
	}

	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}

	groups := groupByCPU(sessions)
	cpuCounts := make([]int, 0, len(groups))
	for cpus := range groups {
		cpuCounts = append(cpuCounts, cpus)
	}
	sort.Ints(cpuCounts)

	for _, cpus := range cpuCounts {
		p, err := throughputPlot(cpus, groups[cpus])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building plot for %d CPU(s): %v\n", cpus, err)
			continue
		}
		filename := fmt.Sprintf("%s_%d.png", *outputPrefix, cpus)
		if err := p.Save(12*vg.Inch, 8*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %d CPU(s): %v\n", cpus, err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s) saved to %s\n", cpus, filename)
	}

	p, err := bestPlot(bestThroughput(sessions))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building summary plot: %v\n", err)
		os.Exit(1)
	}
	filename := *outputPrefix + "_best.png"
	if err := p.Save(10*vg.Inch, 6*vg.Inch, filename); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving summary plot: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Summary graph saved to %s\n", filename)
}

func newDarkPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	p.BackgroundColor = background
	p.Title.TextStyle.Color = foreground
	p.X.Label.TextStyle.Color = foreground
	p.Y.Label.TextStyle.Color = foreground
	p.X.Color = foreground
	p.Y.Color = foreground
	p.X.Tick.Label.Color = foreground
	p.Y.Tick.Label.Color = foreground
	p.Legend.Top = true
	p.Legend.TextStyle.Color = foreground
	p.Y.Tick.Marker = plot.TickerFunc(func(min, max float64) []plot.Tick {
		ticks := plot.DefaultTicks{}.Ticks(min, max)
		for i := range ticks {
			if ticks[i].Label != "" {
				ticks[i].Label = formatRate(ticks[i].Value)
			}
		}
		return ticks
	})
	p.Add(plotter.NewGrid())
	return p
}

// throughputPlot draws median throughput per concurrency level with
// error bars spanning the slowest and fastest run.
func throughputPlot(cpus int, byImpl map[string]map[int][]float64) (*plot.Plot, error) {
	p := newDarkPlot(
		fmt.Sprintf("Throughput (min / median / max) vs. goroutines for %d CPU(s)", cpus),
		"NumProducers + NumConsumers",
		"Messages per second",
	)

	levels := concurrencyLevels(byImpl)
	index := make(map[int]float64, len(levels))
	labels := make([]string, len(levels))
	for i, level := range levels {
		index[level] = float64(i)
		labels[i] = strconv.Itoa(level)
	}
	p.X.Tick.Marker = plot.TickerFunc(func(min, max float64) []plot.Tick {
		var ticks []plot.Tick
		for i, label := range labels {
			if v := float64(i); v >= min && v <= max {
				ticks = append(ticks, plot.Tick{Value: v, Label: label})
			}
		}
		return ticks
	})

	names := sortedKeys(byImpl)
	shapes := []draw.GlyphDrawer{draw.CircleGlyph{}, draw.SquareGlyph{}, draw.TriangleGlyph{}, draw.CrossGlyph{}}
	for i, name := range names {
		pts := summarize(byImpl[name], index)
		if len(pts) == 0 {
			continue
		}
		c := plotutil.SoftColors[i%len(plotutil.SoftColors)]

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = c
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		scatter.Color = c
		scatter.Shape = shapes[i%len(shapes)]
		scatter.Radius = vg.Points(4)
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, err
		}
		bars.Color = c

		p.Add(line, scatter, bars)
		p.Legend.Add(name, line, scatter)
	}
	return p, nil
}

// bestPlot draws one bar per implementation.
func bestPlot(best map[string]float64) (*plot.Plot, error) {
	p := newDarkPlot("Best throughput per implementation", "", "Messages per second")
	p.Legend.Top = false

	names := sortedKeys(best)
	values := make(plotter.Values, len(names))
	for i, name := range names {
		values[i] = best[name]
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.SoftColors[0]
	bars.LineStyle.Color = foreground
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}
