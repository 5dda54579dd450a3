// Command restaurant seats a table of guests that may only start eating
// once everyone has arrived.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/config"
	"github.com/i5heu/GoMonitorQueue/internal/logger"
	"github.com/i5heu/GoMonitorQueue/pkg/barrier"
)

// Visit records one guest's time at the table.
type Visit struct {
	Guest    int
	Task     rune
	Arrived  time.Time
	Released time.Time
}

func main() {
	configFile := flag.String("config", "", "Path to a YAML or JSON config file")
	guests := flag.Int("guests", 0, "Number of guests at the table (default 4)")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *guests > 0 {
		cfg.Restaurant.Guests = *guests
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	run(cfg.Restaurant.Guests, logger.New(os.Stdout, level))
}

// run starts one goroutine per guest and returns their visits indexed by
// arrival order.
func run(guests int, log *slog.Logger) []Visit {
	table := barrier.New(guests)
	visits := make([]Visit, guests)

	// arrival numbers and task letters are handed out under one lock so
	// the first guest works on task A, the second on B, and so on.
	var mu sync.Mutex
	arrived := 0

	var wg sync.WaitGroup
	wg.Add(guests)
	for i := 0; i < guests; i++ {
		go func() {
			defer wg.Done()

			mu.Lock()
			arrived++
			v := Visit{Guest: arrived, Task: rune('A' + (arrived-1)%26), Arrived: time.Now()}
			mu.Unlock()

			log.Info(fmt.Sprintf("I am thread %d, working on Task %c and waiting to eat.", v.Guest, v.Task), "guest", v.Guest)
			table.Wait()
			v.Released = time.Now()
			log.Info(fmt.Sprintf("I am thread %d and I am eating.", v.Guest), "guest", v.Guest)

			visits[v.Guest-1] = v
		}()
	}
	wg.Wait()
	return visits
}
