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

// Package convert turns source documents into markdown-like plain text by
// running an external converter process per document.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultTimeout        = 120 * time.Second
	DefaultMaxOutputBytes = 20 * 1024 * 1024
	DefaultStderrLimit    = 2 * 1024

	// PathPlaceholder in Args is replaced by the document path.
	PathPlaceholder = "{path}"

	waitDelay = 2 * time.Second
)

// Converter turns the document at path into text.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, path string) (string, error)

// Convert calls f(ctx, path).
func (f ConverterFunc) Convert(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// ProcessConverter runs an external command per document and captures its
// standard output as the extracted text.
type ProcessConverter struct {
	command        string
	args           []string
	env            []string
	timeout        time.Duration
	maxOutputBytes int64
	stderrLimit    int
	logger         *slog.Logger
}

var _ Converter = (*ProcessConverter)(nil)

// Option configures a ProcessConverter.
type Option func(*ProcessConverter) error

// WithArgs sets the command arguments. An argument equal to "{path}" is
// replaced by the document path; without one the path is appended.
func WithArgs(args ...string) Option {
	return func(c *ProcessConverter) error {
		c.args = append([]string(nil), args...)
		return nil
	}
}

// WithTimeout bounds the run time of one conversion.
func WithTimeout(d time.Duration) Option {
	return func(c *ProcessConverter) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithMaxOutputBytes bounds the size of the captured text.
func WithMaxOutputBytes(n int64) Option {
	return func(c *ProcessConverter) error {
		if n <= 0 {
			return fmt.Errorf("max output bytes must be positive, got %d", n)
		}
		c.maxOutputBytes = n
		return nil
	}
}

// WithEnv overlays KEY=VALUE pairs on the inherited environment.
func WithEnv(env map[string]string) Option {
	return func(c *ProcessConverter) error {
		for k, v := range env {
			c.env = append(c.env, k+"="+v)
		}
		return nil
	}
}

// WithStderrLimit bounds the stderr excerpt kept for error reports.
func WithStderrLimit(n int) Option {
	return func(c *ProcessConverter) error {
		if n < 0 {
			return fmt.Errorf("stderr limit cannot be negative, got %d", n)
		}
		c.stderrLimit = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ProcessConverter) error {
		c.logger = logger
		return nil
	}
}

// NewProcessConverter creates a converter running command.
func NewProcessConverter(command string, opts ...Option) (*ProcessConverter, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrInvalidCommand
	}
	c := &ProcessConverter{
		command:        command,
		timeout:        DefaultTimeout,
		maxOutputBytes: DefaultMaxOutputBytes,
		stderrLimit:    DefaultStderrLimit,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "converter")
	return c, nil
}

func (c *ProcessConverter) buildArgs(path string) []string {
	args := make([]string, 0, len(c.args)+1)
	substituted := false
	for _, a := range c.args {
		if a == PathPlaceholder {
			args = append(args, path)
			substituted = true
			continue
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

// Convert runs the command against path and returns its stdout.
// Cancelling ctx is reported as a KindTimeout failure.
func (c *ProcessConverter) Convert(ctx context.Context, path string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.command, c.buildArgs(path)...)
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stderr := &limitedBuffer{limit: c.stderrLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &ConversionError{Kind: KindSpawnFailure, Path: path, Err: err}
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return "", &ConversionError{Kind: KindSpawnFailure, Path: path, Err: err}
	}

	var out bytes.Buffer
	exceeded := false
	buf := make([]byte, 32*1024)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			if int64(out.Len()+n) > c.maxOutputBytes {
				exceeded = true
				cancel()
				break
			}
			out.Write(buf[:n])
		}
		if readErr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(started)

	switch {
	case exceeded:
		return "", &ConversionError{
			Kind:   KindSizeExceeded,
			Path:   path,
			Stderr: stderr.String(),
			Err:    fmt.Errorf("output exceeded %d bytes", c.maxOutputBytes),
		}
	case runCtx.Err() != nil:
		c.logger.Debug("conversion timed out", "path", path, "elapsed", elapsed)
		return "", &ConversionError{
			Kind:   KindTimeout,
			Path:   path,
			Stderr: stderr.String(),
			Err:    runCtx.Err(),
		}
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return "", &ConversionError{
				Kind:     KindNonZeroExit,
				Path:     path,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return "", &ConversionError{Kind: KindSpawnFailure, Path: path, Stderr: stderr.String(), Err: waitErr}
	}

	c.logger.Debug("converted document", "path", path, "bytes", out.Len(), "elapsed", elapsed)
	return toValidUTF8(out.Bytes()), nil
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	s := strings.TrimSpace(toValidUTF8(b.buf.Bytes()))
	if b.truncated {
		s += "..."
	}
	return s
}
