package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config captures the runtime knobs for an adversarial training run.
type Config struct {
	TrainRoot string `yaml:"train_root"`
	TestRoot  string `yaml:"test_root"`

	Epochs     int   `yaml:"epochs"`
	BatchSize  int   `yaml:"batch_size"`
	NumWorkers int   `yaml:"num_workers"`
	Seed       int64 `yaml:"seed"`

	Classes int `yaml:"classes"`
	Grid    int `yaml:"grid"`

	Fraction float64 `yaml:"fraction"`
	Attack   string  `yaml:"attack"`
	Epsilon  float64 `yaml:"epsilon"`
	PGDSteps int     `yaml:"pgd_steps"`

	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`
	WeightDecay  float64 `yaml:"weight_decay"`
	LRGamma      float64 `yaml:"lr_gamma"`
	LRInterval   int     `yaml:"lr_interval"`

	Device      string `yaml:"device"`
	RunDir      string `yaml:"run_dir"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	TrainRoot string
	TestRoot  string
	Epochs    int
	BatchSize int
	Fraction  float64
	Attack    string
	Epsilon   float64
	Seed      int64
	Device    string
	RunDir    string
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainRoot != "" {
		c.TrainRoot = o.TrainRoot
	}
	if o.TestRoot != "" {
		c.TestRoot = o.TestRoot
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Fraction > 0 {
		c.Fraction = o.Fraction
	}
	if o.Attack != "" {
		c.Attack = o.Attack
	}
	if o.Epsilon > 0 {
		c.Epsilon = o.Epsilon
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.RunDir != "" {
		c.RunDir = o.RunDir
	}
}

// Validate verifies the config is runnable and fills safe defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TrainRoot == "" || c.TestRoot == "" {
		return errors.New("train_root and test_root must both be set")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.Classes <= 0 {
		return fmt.Errorf("classes must be > 0 (got %d)", c.Classes)
	}
	if c.Grid <= 0 {
		c.Grid = 16
	}
	if c.Fraction <= 0 || c.Fraction > 1 {
		return fmt.Errorf("fraction must be in (0, 1] (got %g)", c.Fraction)
	}
	switch c.Attack {
	case "", "fgsm":
		c.Attack = "fgsm"
	case "pgd", "identity":
	default:
		return fmt.Errorf("unknown attack %q (have: fgsm, pgd, identity)", c.Attack)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be >= 0 (got %g)", c.Epsilon)
	}
	if c.PGDSteps <= 0 {
		c.PGDSteps = 10
	}
	switch c.Optimizer {
	case "", "sgd":
		c.Optimizer = "sgd"
	case "adamw":
	default:
		return fmt.Errorf("unknown optimizer %q (have: sgd, adamw)", c.Optimizer)
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.01
	}
	if c.LRGamma <= 0 || c.LRGamma > 1 {
		c.LRGamma = 1
	}
	if c.LRInterval <= 0 {
		c.LRInterval = 1
	}
	if c.Device == "" {
		c.Device = "cpu"
	}
	if c.RunDir == "" {
		c.RunDir = "runs"
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")

		var err error
		switch key {
		case "train_root":
			cfg.TrainRoot = value
		case "test_root":
			cfg.TestRoot = value
		case "epochs":
			cfg.Epochs, err = strconv.Atoi(value)
		case "batch_size":
			cfg.BatchSize, err = strconv.Atoi(value)
		case "num_workers":
			cfg.NumWorkers, err = strconv.Atoi(value)
		case "seed":
			cfg.Seed, err = strconv.ParseInt(value, 10, 64)
		case "classes":
			cfg.Classes, err = strconv.Atoi(value)
		case "grid":
			cfg.Grid, err = strconv.Atoi(value)
		case "fraction":
			cfg.Fraction, err = strconv.ParseFloat(value, 64)
		case "attack":
			cfg.Attack = value
		case "epsilon":
			cfg.Epsilon, err = strconv.ParseFloat(value, 64)
		case "pgd_steps":
			cfg.PGDSteps, err = strconv.Atoi(value)
		case "optimizer":
			cfg.Optimizer = value
		case "learning_rate":
			cfg.LearningRate, err = strconv.ParseFloat(value, 64)
		case "momentum":
			cfg.Momentum, err = strconv.ParseFloat(value, 64)
		case "weight_decay":
			cfg.WeightDecay, err = strconv.ParseFloat(value, 64)
		case "lr_gamma":
			cfg.LRGamma, err = strconv.ParseFloat(value, 64)
		case "lr_interval":
			cfg.LRInterval, err = strconv.Atoi(value)
		case "device":
			cfg.Device = value
		case "run_dir":
			cfg.RunDir = value
		case "metrics_addr":
			cfg.MetricsAddr = value
		default:
			return nil, fmt.Errorf("line %d: unknown key %s", lineNo, key)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
