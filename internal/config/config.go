package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/logger"
	"github.com/i5heu/GoMonitorQueue/internal/park"

	"gopkg.in/yaml.v3"
)

// FileConfig is the layout of a configuration file. Every section is
// optional; missing values fall back to Default.
type FileConfig struct {
	Park       ParkConfig       `yaml:"park" json:"park"`
	ProdCons   ProdConsConfig   `yaml:"prodcons" json:"prodcons"`
	Restaurant RestaurantConfig `yaml:"restaurant" json:"restaurant"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ParkConfig configures the bumper-cars simulation.
type ParkConfig struct {
	Cars     int        `yaml:"cars" json:"cars"`
	Riders   int        `yaml:"riders" json:"riders"`
	Duration string     `yaml:"duration" json:"duration"`
	Walk     SpanConfig `yaml:"walk" json:"walk"`
	Ride     SpanConfig `yaml:"ride" json:"ride"`
}

// SpanConfig is a duration range written as strings, e.g. "1s".
type SpanConfig struct {
	Min string `yaml:"min" json:"min"`
	Max string `yaml:"max" json:"max"`
}

// ProdConsConfig configures the producer/consumer demo.
type ProdConsConfig struct {
	Capacity  int `yaml:"capacity" json:"capacity"`
	Producers int `yaml:"producers" json:"producers"`
	Consumers int `yaml:"consumers" json:"consumers"`
	Items     int `yaml:"items" json:"items"`
}

// RestaurantConfig configures the barrier demo.
type RestaurantConfig struct {
	Guests int `yaml:"guests" json:"guests"`
}

// ServerConfig enables the HTTP endpoints when Addr is set.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the values used by the classic exercises.
func Default() *FileConfig {
	return &FileConfig{
		Park: ParkConfig{
			Cars:     3,
			Riders:   5,
			Duration: "30s",
			Walk:     SpanConfig{Min: "1s", Max: "10s"},
			Ride:     SpanConfig{Min: "1s", Max: "5s"},
		},
		ProdCons: ProdConsConfig{
			Capacity:  20,
			Producers: 1,
			Consumers: 1,
			Items:     500,
		},
		Restaurant: RestaurantConfig{Guests: 4},
		Log:        LogConfig{Level: "info"},
	}
}

// LoadFile reads a YAML or JSON file on top of Default.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks counts and parses every duration once.
func (f *FileConfig) Validate() error {
	if f.Park.Cars < 1 {
		return fmt.Errorf("park.cars must be at least 1")
	}
	if f.Park.Riders < 1 {
		return fmt.Errorf("park.riders must be at least 1")
	}
	if _, err := f.ParkDuration(); err != nil {
		return err
	}
	if _, err := f.ParkConfig(); err != nil {
		return err
	}

	pc := f.ProdCons
	if pc.Capacity < 1 {
		return fmt.Errorf("prodcons.capacity must be at least 1")
	}
	if pc.Producers < 1 || pc.Consumers < 1 {
		return fmt.Errorf("prodcons.producers and prodcons.consumers must be at least 1")
	}
	if pc.Items < 0 {
		return fmt.Errorf("prodcons.items must be non-negative")
	}

	if f.Restaurant.Guests < 1 {
		return fmt.Errorf("restaurant.guests must be at least 1")
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ParkDuration returns how long the park stays open.
func (f *FileConfig) ParkDuration() (time.Duration, error) {
	d, err := time.ParseDuration(f.Park.Duration)
	if err != nil {
		return 0, fmt.Errorf("invalid park.duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("park.duration must be positive")
	}
	return d, nil
}

// ParkConfig converts the park section into a park.Config.
func (f *FileConfig) ParkConfig() (park.Config, error) {
	cfg := park.Config{
		Cars:   f.Park.Cars,
		Riders: f.Park.Riders,
	}
	var err error
	if cfg.Walk, err = f.Park.Walk.span("park.walk"); err != nil {
		return cfg, err
	}
	if cfg.Ride, err = f.Park.Ride.span("park.ride"); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s SpanConfig) span(name string) (park.Span, error) {
	lo, err := time.ParseDuration(s.Min)
	if err != nil {
		return park.Span{}, fmt.Errorf("invalid %s.min: %w", name, err)
	}
	hi, err := time.ParseDuration(s.Max)
	if err != nil {
		return park.Span{}, fmt.Errorf("invalid %s.max: %w", name, err)
	}
	return park.Span{Min: lo, Max: hi}, nil
}
