// Command prodcons moves letters from producers to consumers through a
// bounded monitor queue and reports what each side saw.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/i5heu/GoMonitorQueue/internal/config"
	"github.com/i5heu/GoMonitorQueue/internal/logger"
	"github.com/i5heu/GoMonitorQueue/internal/testbench"
	"github.com/i5heu/GoMonitorQueue/pkg/boundedqueue"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Result summarises a run.
type Result struct {
	Produced map[int]int // producer -> items put
	Consumed map[int]int // consumer -> items taken
	Letters  []rune      // every letter in the order consumers took them

	FullWaits  int64 // puts that found the queue full
	EmptyWaits int64 // gets that found the queue empty
}

// waitLogger reports when a producer or consumer is about to block.
type waitLogger struct {
	*boundedqueue.Queue[rune]
	log *slog.Logger

	fullWaits, emptyWaits atomic.Int64
}

func (q *waitLogger) Put(letter rune) {
	if q.TryPut(letter) {
		return
	}
	q.fullWaits.Add(1)
	q.log.Debug("waiting on full", "letter", string(letter), "capacity", q.Cap())
	q.Queue.Put(letter)
}

func (q *waitLogger) Get() rune {
	if letter, ok := q.TryGet(); ok {
		return letter
	}
	q.emptyWaits.Add(1)
	q.log.Debug("waiting on empty")
	return q.Queue.Get()
}

func main() {
	configFile := flag.String("config", "", "Path to a YAML or JSON config file")
	capacity := flag.Int("capacity", 0, "Queue capacity (default 20)")
	producers := flag.Int("producers", 0, "Number of producers (default 1)")
	consumers := flag.Int("consumers", 0, "Number of consumers (default 1)")
	items := flag.Int("items", 0, "Letters per producer (default 500)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *capacity > 0 {
		cfg.ProdCons.Capacity = *capacity
	}
	if *producers > 0 {
		cfg.ProdCons.Producers = *producers
	}
	if *consumers > 0 {
		cfg.ProdCons.Consumers = *consumers
	}
	if *items > 0 {
		cfg.ProdCons.Items = *items
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, level)

	res := run(cfg.ProdCons, log)
	for p := 1; p <= cfg.ProdCons.Producers; p++ {
		fmt.Printf("producer %d finished: %d letters\n", p, res.Produced[p])
	}
	for c := 1; c <= cfg.ProdCons.Consumers; c++ {
		fmt.Printf("consumer %d finished: %d letters\n", c, res.Consumed[c])
	}
	fmt.Printf("waited on full %d times, on empty %d times\n", res.FullWaits, res.EmptyWaits)
}

// run produces Items letters per producer, cycling through the alphabet,
// and joins every producer and consumer before returning.
func run(pc config.ProdConsConfig, log *slog.Logger) Result {
	q := &waitLogger{Queue: boundedqueue.New[rune](pc.Capacity), log: log}
	res := Result{Produced: map[int]int{}, Consumed: map[int]int{}}
	var mu sync.Mutex

	testbench.RunCounted[rune](q, testbench.Config{NumProducers: pc.Producers, NumConsumers: pc.Consumers}, pc.Items,
		func(p, seq int) rune {
			c := rune(alphabet[seq%len(alphabet)])
			log.Debug("produced", "producer", p, "letter", string(c), "queued", q.Len())
			mu.Lock()
			res.Produced[p]++
			mu.Unlock()
			return c
		},
		func(c int, letter rune) {
			log.Debug("consumed", "consumer", c, "letter", string(letter))
			mu.Lock()
			res.Consumed[c]++
			res.Letters = append(res.Letters, letter)
			mu.Unlock()
		},
	)
	res.FullWaits = q.fullWaits.Load()
	res.EmptyWaits = q.emptyWaits.Load()
	return res
}
