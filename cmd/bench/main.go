package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/queue"
	"github.com/i5heu/GoMonitorQueue/internal/testbench"
	"github.com/i5heu/GoMonitorQueue/pkg/boundedqueue"
	"github.com/i5heu/GoMonitorQueue/pkg/buffered"
	"github.com/i5heu/GoMonitorQueue/pkg/lfring"
	"github.com/i5heu/GoMonitorQueue/pkg/spinqueue"
	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            int     `json:"capacity"`
	NumMessages         int64   `json:"num_messages"`          // produced count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed count
	TestDuration        string  `json:"test_duration"`         // e.g. "5s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

type benchQueue = queue.Interface[*int]

// Implementation describes one queue under test.
type Implementation struct {
	name        string
	pkgName     string
	description string
	features    []string
	newQueue    func(capacity int) benchQueue
}

func getImplementations() []Implementation {
	return []Implementation{
		{
			name:        "BoundedQueue",
			pkgName:     "boundedqueue",
			description: "Ring buffer guarded by a mutex and two condition variables; Put and Get park while full or empty.",
			features:    []string{"MPMC", "FIFO", "Bounded", "Blocking"},
			newQueue: func(capacity int) benchQueue {
				return boundedqueue.New[*int](capacity)
			},
		},
		{
			name:        "Golang Buffered Channel",
			pkgName:     "buffered",
			description: "A buffered channel; the runtime parks blocked senders and receivers.",
			features:    []string{"MPMC", "FIFO", "Bounded", "Blocking"},
			newQueue: func(capacity int) benchQueue {
				return buffered.New[*int](capacity)
			},
		},
		{
			name:        "SpinQueue",
			pkgName:     "spinqueue",
			description: "Lock-free sequence-numbered ring; Put and Get spin with runtime.Gosched instead of parking.",
			features:    []string{"MPMC", "FIFO", "Bounded", "Spin-Wait", "Cache-Optimized"},
			newQueue: func(capacity int) benchQueue {
				return spinqueue.New[*int](capacity)
			},
		},
		{
			name:        "ShardedLockFreeRing",
			pkgName:     "lfring",
			description: "go-lock-free-ring sharded MPSC ring with serialised readers.",
			features:    []string{"MPMC", "Sharded", "Spin-Wait"},
			newQueue: func(capacity int) benchQueue {
				return lfring.New[*int](capacity, 4)
			},
		},
	}
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) error {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return fmt.Errorf("reading JSON file %q: %w", jsonFile, err)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("unmarshalling JSON: %w", err)
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions found in %s", jsonFile)
	}
	fmt.Print(markdownTable(sessions[len(sessions)-1]))
	return nil
}

// markdownTable renders the best throughput per implementation of one session.
func markdownTable(session FullReport) string {
	meta := make(map[string]Implementation)
	for _, impl := range getImplementations() {
		meta[impl.name] = impl
	}

	best := make(map[string]float64)
	for _, b := range session.Benchmarks {
		if b.Throughput > best[b.Implementation] {
			best[b.Implementation] = b.Throughput
		}
	}
	names := make([]string, 0, len(best))
	for name := range best {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return best[names[i]] > best[names[j]]
	})

	var sb strings.Builder
	sb.WriteString("## Last Session Benchmark Summary\n\n")
	sb.WriteString("| Implementation           | Package         | Features                         | Throughput (msgs/sec) |\n")
	sb.WriteString("|--------------------------|-----------------|----------------------------------|-----------------------|\n")
	for _, name := range names {
		m := meta[name]
		fmt.Fprintf(&sb, "| %-24s | %-15s | %-32s | %21.0f |\n",
			name, m.pkgName, strings.Join(m.features, ", "), best[name])
	}
	return sb.String()
}

func main() {
	testIterations := flag.Int("iter", 3, "Number of test iterations per concurrency setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	capacity := flag.Int("capacity", 1024, "Queue capacity")
	duration := flag.Duration("duration", 2*time.Second, "Duration of every timed run")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	highConcurrency := flag.Bool("high-concurrency", false, "Include high concurrency configurations")
	markdown := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	flag.Parse()

	if *markdown {
		if err := outputMarkdownTable(*jsonFileForMarkdown); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	trueCPUCount := runtime.NumCPU()
	cpuSettings := cpuCounts(*cpuMaxFlag, trueCPUCount)

	concurrencyConfigs := []testbench.Config{
		{NumProducers: 1, NumConsumers: 1},
		{NumProducers: 2, NumConsumers: 2},
		{NumProducers: 10, NumConsumers: 10},
		{NumProducers: 50, NumConsumers: 50},
	}
	if *highConcurrency {
		concurrencyConfigs = append(concurrencyConfigs,
			testbench.Config{NumProducers: 100, NumConsumers: 100},
			testbench.Config{NumProducers: 250, NumConsumers: 250},
		)
	}

	impls := getImplementations()
	totalTests := len(cpuSettings) * len(concurrencyConfigs) * (*testIterations) * len(impls)

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	var allSessions []FullReport

	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := gatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCPUCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []BenchmarkResult

		for _, cfg := range concurrencyConfigs {
			fmt.Printf("  [Concurrency: producers=%d, consumers=%d]\n", cfg.NumProducers, cfg.NumConsumers)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, *testIterations)
				for _, impl := range impls {
					runtime.GC()
					q := impl.newQueue(*capacity)

					produced, consumed, actualTime := runOnce(q, cfg.NumProducers, cfg.NumConsumers, *duration)
					throughput := float64(consumed) / actualTime.Seconds()

					fmt.Printf("    %s => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%v\n",
						impl.name, produced, consumed, throughput, actualTime)
					if bar != nil {
						_ = bar.Add(1)
					}

					results = append(results, BenchmarkResult{
						Implementation:      impl.name,
						NumProducers:        cfg.NumProducers,
						NumConsumers:        cfg.NumConsumers,
						Capacity:            q.Cap(),
						NumMessages:         produced,
						NumMessagesConsumed: consumed,
						TestDuration:        duration.String(),
						ActualElapsed:       actualTime.String(),
						Throughput:          throughput,
						Timestamp:           time.Now().Unix(),
						GoVersion:           runtime.Version(),
					})
				}
			}
		}

		allSessions = append(allSessions, FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		_ = bar.Finish()
	}

	if *jsonExport {
		const filename = "test-results.json"
		if err := appendSessions(filename, allSessions); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// runOnce drives q with timed producers and consumers and drains it.
func runOnce(q benchQueue, producers, consumers int, d time.Duration) (produced, consumed int64, elapsed time.Duration) {
	cfg := testbench.Config{NumProducers: producers, NumConsumers: consumers}
	return testbench.RunTimedTest[*int](q, cfg, d, func(i int) *int {
		return &i
	})
}

// cpuCounts returns the GOMAXPROCS values to benchmark.
func cpuCounts(requested, available int) []int {
	if requested > 0 {
		return []int{min(requested, available)}
	}
	commonCPUs := []int{1, 2, 4, 8, 16, 32, 64, 128, 256}
	var out []int
	for _, v := range commonCPUs {
		if v <= available {
			out = append(out, v)
		}
	}
	return out
}

// appendSessions adds sessions to the JSON array stored in filename.
func appendSessions(filename string, sessions []FullReport) error {
	var previous []FullReport
	if data, err := os.ReadFile(filename); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &previous); err != nil {
			return fmt.Errorf("existing %s is not a session list: %w", filename, err)
		}
	}
	data, err := json.MarshalIndent(append(previous, sessions...), "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling JSON: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing JSON file: %w", err)
	}
	return nil
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}
