// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads libindex settings from defaults, an optional YAML
// file and LIBINDEX_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/libindex/ai"
	"github.com/poiesic/libindex/chunk"
	"github.com/poiesic/libindex/convert"
	"github.com/poiesic/libindex/ingestion"
	"github.com/poiesic/libindex/scheduler"
	"github.com/poiesic/libindex/window"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Config holds the full libindex configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Library   LibraryConfig   `yaml:"library"`
	Converter ConverterConfig `yaml:"converter"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Window    WindowConfig    `yaml:"window"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
}

// StorageConfig selects the storage engine.
type StorageConfig struct {
	Driver string `yaml:"driver"` // badger | sqlite
	Path   string `yaml:"path"`   // badger directory or sqlite file
}

// LibraryConfig describes the scanned document library.
type LibraryConfig struct {
	Root       string   `yaml:"root"`
	Extensions []string `yaml:"extensions"`
}

// ConverterConfig configures the external text converter.
type ConverterConfig struct {
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args"` // "{path}" is replaced with the document path
	Timeout        time.Duration     `yaml:"timeout"`
	MaxOutputBytes int64             `yaml:"max_output_bytes"`
	Env            map[string]string `yaml:"env"`
}

// ChunkingConfig mirrors chunk.Options.
type ChunkingConfig struct {
	MaxChars       int `yaml:"max_chars"`
	MinChars       int `yaml:"min_chars"`
	ParagraphChars int `yaml:"paragraph_chars"`
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	Host              string        `yaml:"host"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	Dimension         int           `yaml:"dimension"`
	BatchSize         int           `yaml:"batch_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables rate limiting
	Burst             int           `yaml:"burst"`
	MaxAttempts       int           `yaml:"max_attempts"` // per request, including the first
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

// PipelineConfig configures document concurrency.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// WindowConfig configures the business-hours gate. Empty Start and End
// disable it.
type WindowConfig struct {
	Start        string        `yaml:"start"` // HH:MM
	End          string        `yaml:"end"`   // HH:MM
	Timezone     string        `yaml:"timezone"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SchedulerConfig configures periodic passes.
type SchedulerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	RecentLimit int           `yaml:"recent_limit"`
}

// ServerConfig configures the ops HTTP surface of `libindex serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	chunking := chunk.DefaultOptions()
	return &Config{
		Storage: StorageConfig{
			Driver: DriverBadger,
			Path:   "libindex-data",
		},
		Library: LibraryConfig{
			Extensions: []string{".pdf", ".docx", ".md", ".txt", ".html"},
		},
		Converter: ConverterConfig{
			Command:        "pandoc",
			Args:           []string{"--to", "markdown", "{path}"},
			Timeout:        convert.DefaultTimeout,
			MaxOutputBytes: convert.DefaultMaxOutputBytes,
		},
		Chunking: ChunkingConfig{
			MaxChars:       chunking.MaxChars,
			MinChars:       chunking.MinChars,
			ParagraphChars: chunking.ParagraphChars,
		},
		Embedding: EmbeddingConfig{
			Host:        ai.DefaultEmbeddingHost,
			Model:       ai.DefaultEmbeddingModel,
			Dimension:   ai.DefaultDimension,
			BatchSize:   ingestion.DefaultBatchSize,
			Burst:       1,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Pipeline: PipelineConfig{
			Concurrency: ingestion.DefaultConcurrency,
		},
		Window: WindowConfig{
			Timezone:     "UTC",
			PollInterval: window.DefaultPollInterval,
		},
		Scheduler: SchedulerConfig{
			Interval:    scheduler.DefaultInterval,
			RecentLimit: scheduler.DefaultRecentLimit,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadFile reads a YAML file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.MergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile reads a YAML file over the current values. Keys absent from
// the file keep their values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// empty) and the environment, then validates it.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes values and checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverBadger, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported driver %q (use badger or sqlite)", c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	if c.Converter.Command == "" {
		errs = append(errs, errors.New("converter.command is required"))
	}
	if c.Converter.Timeout <= 0 {
		errs = append(errs, errors.New("converter.timeout must be > 0"))
	}
	if c.Converter.MaxOutputBytes <= 0 {
		errs = append(errs, errors.New("converter.max_output_bytes must be > 0"))
	}

	if c.Chunking.MaxChars <= 0 {
		errs = append(errs, errors.New("chunking.max_chars must be > 0"))
	}
	if c.Chunking.ParagraphChars <= 0 {
		errs = append(errs, errors.New("chunking.paragraph_chars must be > 0"))
	}
	if c.Chunking.MinChars > c.Chunking.MaxChars {
		c.Chunking.MinChars = c.Chunking.MaxChars
	}

	if c.Embedding.Dimension <= 0 {
		errs = append(errs, errors.New("embedding.dimension must be > 0"))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, errors.New("embedding.batch_size must be > 0"))
	}
	if c.Embedding.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("embedding.requests_per_second must be >= 0"))
	}
	if c.Embedding.Burst < 1 {
		c.Embedding.Burst = 1
	}
	if c.Embedding.MaxAttempts < 1 {
		c.Embedding.MaxAttempts = 1
	}

	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, errors.New("pipeline.concurrency must be >= 1"))
	}

	if (c.Window.Start == "") != (c.Window.End == "") {
		errs = append(errs, errors.New("window: start and end must be set together"))
	}
	if c.Window.Start != "" {
		if _, err := window.ParseTimeOfDay(c.Window.Start); err != nil {
			errs = append(errs, fmt.Errorf("window.start: %w", err))
		}
		if _, err := window.ParseTimeOfDay(c.Window.End); err != nil {
			errs = append(errs, fmt.Errorf("window.end: %w", err))
		}
	}
	if c.Window.Timezone != "" {
		if _, err := time.LoadLocation(c.Window.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("window.timezone: %w", err))
		}
	}

	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be > 0"))
	}
	if c.Scheduler.RecentLimit < 1 {
		c.Scheduler.RecentLimit = scheduler.DefaultRecentLimit
	}

	return errors.Join(errs...)
}

// ChunkOptions returns the chunking section as chunk.Options.
func (c *Config) ChunkOptions() chunk.Options {
	return chunk.Options{
		MaxChars:       c.Chunking.MaxChars,
		MinChars:       c.Chunking.MinChars,
		ParagraphChars: c.Chunking.ParagraphChars,
	}
}

// AIConfig returns the embedding section as an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithDimension(c.Embedding.Dimension),
	)
}
