package main

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressWatchdog monitors progress and fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if time.Since(time.Unix(0, wd.lastProgress.Load())) > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
}

// withAllQueues runs fn against every implementation that has all testedFeatures.
// Feature filtering is done inside the subtest so skips are reported per queue.
func withAllQueues(t *testing.T, testedFeatures []string, fn func(t *testing.T, impl Implementation)) {
	t.Helper()
	for _, impl := range getImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			for _, feature := range testedFeatures {
				found := false
				for _, implFeature := range impl.features {
					if feature == implFeature {
						found = true
						break
					}
				}
				if !found {
					t.Skipf("Skipping: missing feature %q", feature)
				}
			}
			fn(t, impl)
		})
	}
}

func TestBasicFIFO(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation) {
		const N = 1024
		q := impl.newQueue(N)

		wd := newWatchdog(t, "BasicFIFO")
		wd.Start()
		defer wd.Stop()

		for i := 0; i < N; i++ {
			item := i
			q.Put(&item)
			wd.Progress()
		}
		require.Equal(t, N, q.Len())

		for i := 0; i < N; i++ {
			v := q.Get()
			wd.Progress()
			require.Equal(t, i, *v, "FIFO order broken at index %d", i)
		}
		assert.Zero(t, q.Len())
	})
}

func TestEmptyQueue(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(8)
		for i := 0; i < 100; i++ {
			v, ok := q.TryGet()
			require.False(t, ok)
			require.Nil(t, v)
		}
		assert.Zero(t, q.Len())
	})
}

func TestWrapAround(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(4)
		next := 0
		for round := 0; round < 50; round++ {
			for i := 0; i < 3; i++ {
				v := round*3 + i
				q.Put(&v)
			}
			for i := 0; i < 3; i++ {
				v := q.Get()
				require.Equal(t, next, *v)
				next++
			}
		}
	})
}

func TestTryPutStopsAtCapacity(t *testing.T) {
	withAllQueues(t, []string{"Bounded"}, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(16)
		capacity := q.Cap()

		for i := 0; i < capacity; i++ {
			v := i
			require.True(t, q.TryPut(&v), "slot %d of %d", i, capacity)
		}
		extra := -1
		assert.False(t, q.TryPut(&extra))
		assert.Equal(t, capacity, q.Len())

		_, ok := q.TryGet()
		require.True(t, ok)
		assert.True(t, q.TryPut(&extra))
	})
}

func TestFullQueueBlocksProducer(t *testing.T) {
	withAllQueues(t, []string{"Bounded"}, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(2)
		for i := 0; i < q.Cap(); i++ {
			v := i
			q.Put(&v)
		}

		var done atomic.Bool
		go func() {
			v := 99
			q.Put(&v)
			done.Store(true)
		}()

		time.Sleep(20 * time.Millisecond)
		assert.False(t, done.Load(), "Put returned on a full queue")

		q.Get()
		require.Eventually(t, done.Load, time.Second, time.Millisecond)
	})
}

// TestNoDataLoss checks that the multiset of values put equals the
// multiset taken when many producers and consumers contend.
func TestNoDataLoss(t *testing.T) {
	withAllQueues(t, []string{"MPMC"}, func(t *testing.T, impl Implementation) {
		const (
			numProducers        = 20
			numConsumers        = 20
			messagesPerProducer = 2000
		)
		total := numProducers * messagesPerProducer
		q := impl.newQueue(64)

		wd := newWatchdog(t, "NoDataLoss")
		wd.Start()
		defer wd.Stop()

		var prodWg sync.WaitGroup
		prodWg.Add(numProducers)
		for p := 0; p < numProducers; p++ {
			go func(p int) {
				defer prodWg.Done()
				for j := 0; j < messagesPerProducer; j++ {
					v := p*messagesPerProducer + j
					q.Put(&v)
					wd.Progress()
				}
			}(p)
		}

		results := make(chan int, total)
		var consWg sync.WaitGroup
		consWg.Add(numConsumers)
		for c := 0; c < numConsumers; c++ {
			count := total / numConsumers
			if c == numConsumers-1 {
				count += total % numConsumers
			}
			go func(count int) {
				defer consWg.Done()
				for j := 0; j < count; j++ {
					results <- *q.Get()
					wd.Progress()
				}
			}(count)
		}

		prodWg.Wait()
		consWg.Wait()
		close(results)

		got := make([]int, 0, total)
		for v := range results {
			got = append(got, v)
		}
		require.Len(t, got, total)
		sort.Ints(got)
		for i, v := range got {
			require.Equal(t, i, v)
		}
		assert.Zero(t, q.Len())
	})
}

// TestPerProducerOrder checks that with several producers each producer's
// own values still come out in the order it put them.
func TestPerProducerOrder(t *testing.T) {
	withAllQueues(t, []string{"FIFO", "MPMC"}, func(t *testing.T, impl Implementation) {
		const numProducers, perProducer = 4, 5000
		q := impl.newQueue(32)

		var wg sync.WaitGroup
		wg.Add(numProducers)
		for p := 0; p < numProducers; p++ {
			go func(p int) {
				defer wg.Done()
				for j := 0; j < perProducer; j++ {
					v := p*perProducer + j
					q.Put(&v)
				}
			}(p)
		}

		last := make([]int, numProducers)
		for i := range last {
			last[i] = -1
		}
		for i := 0; i < numProducers*perProducer; i++ {
			v := *q.Get()
			p, seq := v/perProducer, v%perProducer
			require.Greater(t, seq, last[p], "producer %d reordered", p)
			last[p] = seq
		}
		wg.Wait()
	})
}

func TestGCDoesntCorruptQueue(t *testing.T) {
	withAllQueues(t, nil, func(t *testing.T, impl Implementation) {
		q := impl.newQueue(128)
		var want int
		for i := 0; i < 64; i++ {
			v := i
			q.Put(&v)
			want += i
		}
		runtime.GC()
		runtime.GC()

		var sum int
		for i := 0; i < 64; i++ {
			sum += *q.Get()
		}
		assert.Equal(t, want, sum)
	})
}

func TestCPUCounts(t *testing.T) {
	assert.Equal(t, []int{4}, cpuCounts(4, 16))
	assert.Equal(t, []int{16}, cpuCounts(64, 16))
	assert.Equal(t, []int{1, 2, 4, 8}, cpuCounts(0, 12))
	assert.Equal(t, []int{1}, cpuCounts(0, 1))
}

func TestSessionsRoundTripToMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	first := FullReport{SessionTime: "first", Benchmarks: []BenchmarkResult{
		{Implementation: "SpinQueue", Throughput: 10},
	}}
	second := FullReport{SessionTime: "second", Benchmarks: []BenchmarkResult{
		{Implementation: "BoundedQueue", Throughput: 100},
		{Implementation: "BoundedQueue", Throughput: 300},
		{Implementation: "Golang Buffered Channel", Throughput: 200},
	}}
	require.NoError(t, appendSessions(path, []FullReport{first}))
	require.NoError(t, appendSessions(path, []FullReport{second}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"first"`)

	table := markdownTable(second)
	assert.Contains(t, table, "| BoundedQueue ")
	assert.Contains(t, table, "boundedqueue")
	assert.Contains(t, table, "300 |")
	assert.NotContains(t, table, "SpinQueue")
	assert.Less(t,
		strings.Index(table, "BoundedQueue"),
		strings.Index(table, "Golang Buffered Channel"),
		"rows are sorted by throughput")
}

func TestRunShortBenchmark(t *testing.T) {
	for _, impl := range getImplementations() {
		q := impl.newQueue(256)
		produced, consumed, elapsed := runOnce(q, 2, 2, 20*time.Millisecond)
		assert.Positive(t, produced, impl.name)
		assert.Equal(t, produced, consumed, impl.name)
		assert.Positive(t, elapsed, impl.name)
	}
}
