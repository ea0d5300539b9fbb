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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "LIBINDEX_"

// LoadEnv loads envFile (or ./.env when envFile is empty and the file
// exists) into the process environment, then applies LIBINDEX_* variables
// over the current values. Variables already set in the environment win
// over the file.
func (c *Config) LoadEnv(envFile string) error {
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	return c.ApplyEnv()
}

// ApplyEnv applies LIBINDEX_* variables over the current values.
func (c *Config) ApplyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	envString("STORAGE_DRIVER", &c.Storage.Driver)
	envString("STORAGE_PATH", &c.Storage.Path)

	envString("LIBRARY_ROOT", &c.Library.Root)
	envList("LIBRARY_EXTENSIONS", &c.Library.Extensions)

	envString("CONVERTER_COMMAND", &c.Converter.Command)
	envList("CONVERTER_ARGS", &c.Converter.Args)
	collect(envDuration("CONVERTER_TIMEOUT", &c.Converter.Timeout))
	collect(envInt64("CONVERTER_MAX_OUTPUT_BYTES", &c.Converter.MaxOutputBytes))

	collect(envInt("CHUNKING_MAX_CHARS", &c.Chunking.MaxChars))
	collect(envInt("CHUNKING_MIN_CHARS", &c.Chunking.MinChars))
	collect(envInt("CHUNKING_PARAGRAPH_CHARS", &c.Chunking.ParagraphChars))

	envString("EMBEDDING_HOST", &c.Embedding.Host)
	envString("EMBEDDING_MODEL", &c.Embedding.Model)
	envString("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	collect(envInt("EMBEDDING_DIMENSION", &c.Embedding.Dimension))
	collect(envInt("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize))
	collect(envFloat("EMBEDDING_REQUESTS_PER_SECOND", &c.Embedding.RequestsPerSecond))
	collect(envInt("EMBEDDING_BURST", &c.Embedding.Burst))
	collect(envInt("EMBEDDING_MAX_ATTEMPTS", &c.Embedding.MaxAttempts))
	collect(envDuration("EMBEDDING_RETRY_DELAY", &c.Embedding.RetryDelay))

	collect(envInt("PIPELINE_CONCURRENCY", &c.Pipeline.Concurrency))

	envString("WINDOW_START", &c.Window.Start)
	envString("WINDOW_END", &c.Window.End)
	envString("WINDOW_TIMEZONE", &c.Window.Timezone)
	collect(envDuration("WINDOW_POLL_INTERVAL", &c.Window.PollInterval))

	collect(envDuration("SCHEDULER_INTERVAL", &c.Scheduler.Interval))
	collect(envInt("SCHEDULER_RECENT_LIMIT", &c.Scheduler.RecentLimit))

	envString("SERVER_ADDR", &c.Server.Addr)

	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func envString(key string, dst *string) {
	if value, ok := lookup(key); ok {
		*dst = value
	}
}

// envList reads a comma-separated list.
func envList(key string, dst *[]string) {
	value, ok := lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func envInt(key string, dst *int) error {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}
