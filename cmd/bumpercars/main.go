// Command bumpercars simulates riders taking turns on a fixed fleet of
// bumper cars and walking around the park in between.
//
//	bumpercars [flags] [cars riders seconds]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/api"
	"github.com/i5heu/GoMonitorQueue/internal/config"
	"github.com/i5heu/GoMonitorQueue/internal/events"
	"github.com/i5heu/GoMonitorQueue/internal/logger"
	"github.com/i5heu/GoMonitorQueue/internal/metrics"
	"github.com/i5heu/GoMonitorQueue/internal/park"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML or JSON config file")
	addr := flag.String("addr", "", "Serve /metrics, /api/status and /ws on this address (e.g. :8080)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [cars riders seconds]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configFile, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the optional file, then applies the positional
// "cars riders seconds" arguments on top.
func loadConfig(path string, args []string) (*config.FileConfig, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	switch len(args) {
	case 0:
	case 3:
		nums := make([]int, 3)
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("argument %d (%q) must be a positive integer", i+1, a)
			}
			nums[i] = n
		}
		cfg.Park.Cars = nums[0]
		cfg.Park.Riders = nums[1]
		cfg.Park.Duration = (time.Duration(nums[2]) * time.Second).String()
	default:
		return nil, errors.New("expected exactly three arguments: cars riders seconds")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.FileConfig) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, level)
	logger.SetDefault(log)

	parkCfg, err := cfg.ParkConfig()
	if err != nil {
		return err
	}
	duration, err := cfg.ParkDuration()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	bus := events.NewBus()
	defer bus.Close()

	p, err := park.New(parkCfg, metrics.NewPool(reg), park.WithLogger(log), park.WithEvents(bus))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, duration)
	defer cancel()

	if cfg.Server.Addr != "" {
		srv := api.NewServer(cfg.Server.Addr, reg, func() any { return p.Snapshot() }, bus, log)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Error("API server stopped", "err", err)
			}
		}()
	}

	log.Info("simulation started", "cars", parkCfg.Cars, "riders", parkCfg.Riders, "duration", duration)
	if err := p.Run(ctx); err != nil {
		return err
	}

	s := p.Snapshot()
	fmt.Printf("\nPark closed after %s: %d rides on %d cars by %d riders, %d cars parked.\n",
		duration, s.Rides, s.Cars, s.Riders, s.IdleCars)
	return nil
}
