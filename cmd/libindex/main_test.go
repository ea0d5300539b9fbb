package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/libindex"
	"github.com/poiesic/libindex/ai/mock"
	"github.com/poiesic/libindex/config"
	"github.com/poiesic/libindex/convert"
	"github.com/poiesic/libindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testDimension = 8

// useFakeIndex swaps the embedding service and converter for in-process fakes.
func useFakeIndex(t *testing.T) {
	t.Helper()
	original := openIndex
	openIndex = func(ctx context.Context, cfg *config.Config, opts ...libindex.Option) (*libindex.Index, error) {
		return libindex.Open(ctx, cfg, append([]libindex.Option{
			libindex.WithEmbedder(mock.NewMockEmbedderWithDimension(testDimension)),
			libindex.WithConverter(convert.ConverterFunc(func(ctx context.Context, path string) (string, error) {
				data, err := os.ReadFile(path)
				return string(data), err
			})),
		}, opts...)...)
	}
	t.Cleanup(func() { openIndex = original })
}

// writeConfig creates a library with the given files and a config file
// pointing at it.
func writeConfig(t *testing.T, files map[string]string) (configPath, root string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	configPath = filepath.Join(dir, "libindex.yaml")
	yaml := fmt.Sprintf(`storage:
  driver: sqlite
  path: %q
library:
  root: %q
  extensions: [".txt"]
embedding:
  dimension: %d
`, filepath.Join(dir, "index.db"), root, testDimension)
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))
	return configPath, root
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"libindex"}, args...))
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	useFakeIndex(t)
	configPath, _ := writeConfig(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "bravo",
	})

	out, err := runApp(t, "--config", configPath, "scan")
	require.NoError(t, err)

	var result core.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.ScannedCount)
	assert.Len(t, result.NewlyIndexed, 2)
	assert.NotEmpty(t, result.CorrelationID)

	out, err = runApp(t, "--config", configPath, "scan")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"a.txt", "b.txt"}, result.SkippedExisting)
}

func TestScanCommand_RootOverride(t *testing.T) {
	useFakeIndex(t)
	configPath, _ := writeConfig(t, nil)

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "c.txt"), []byte("charlie"), 0o644))

	out, err := runApp(t, "--config", configPath, "scan", "--root", other)
	require.NoError(t, err)

	var result core.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.ScannedCount)
}

func TestScanCommand_Progress(t *testing.T) {
	useFakeIndex(t)
	configPath, _ := writeConfig(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "bravo",
	})

	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	require.NoError(t, app.Run([]string{"libindex", "--config", configPath, "scan", "--progress", "1"}))

	var result core.PassResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, 2, result.ScannedCount)
	assert.Contains(t, errOut.String(), "Progress: 1/2 (50.0%)")
	assert.Contains(t, errOut.String(), "Progress: 2/2 (100.0%)")
}

func TestIngestCommand(t *testing.T) {
	useFakeIndex(t)
	configPath, _ := writeConfig(t, nil)

	file := filepath.Join(t.TempDir(), "memo.txt")
	require.NoError(t, os.WriteFile(file, []byte("a short memo"), 0o644))

	out, err := runApp(t, "--config", configPath, "ingest", file)
	require.NoError(t, err)

	var result core.SingleFileResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, core.IngestIndexed, result.Status)
	assert.Equal(t, "memo.txt", result.Filename)

	_, err = runApp(t, "--config", configPath, "ingest")
	assert.Error(t, err)
}

func TestIngestCommand_FailureExitsNonZero(t *testing.T) {
	useFakeIndex(t)
	configPath, _ := writeConfig(t, nil)

	file := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(file, []byte("   \n\n"), 0o644))

	out, err := runApp(t, "--config", configPath, "ingest", file)
	require.Error(t, err)

	var result core.SingleFileResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, core.IngestFailedParse, result.Status)
	assert.Equal(t, "No chunks produced", result.Error)
}

func TestStatusCommand(t *testing.T) {
	useFakeIndex(t)
	configPath, _ := writeConfig(t, map[string]string{"a.txt": "alpha"})

	_, err := runApp(t, "--config", configPath, "scan")
	require.NoError(t, err)

	out, err := runApp(t, "--config", configPath, "status")
	require.NoError(t, err)

	var status core.SchedulerStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 1, status.TotalDocuments)
	require.Len(t, status.RecentDocuments, 1)
	assert.Equal(t, core.StatusIndexed, status.RecentDocuments[0].Status)
}

func TestConfigErrors(t *testing.T) {
	_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestRouter(t *testing.T) {
	configPath, _ := writeConfig(t, map[string]string{"a.txt": "alpha"})
	cfg, err := config.Load(configPath, "")
	require.NoError(t, err)

	idx, err := libindex.Open(context.Background(), cfg,
		libindex.WithEmbedder(mock.NewMockEmbedderWithDimension(testDimension)),
		libindex.WithConverter(convert.ConverterFunc(func(ctx context.Context, path string) (string, error) {
			return "converted text", nil
		})))
	require.NoError(t, err)
	defer idx.Close()

	server := httptest.NewServer(newRouter(idx))
	defer server.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("trigger then status", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/trigger", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		require.Eventually(t, func() bool {
			resp, err := http.Get(server.URL + "/status")
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			var status core.SchedulerStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return false
			}
			return !status.Running && status.RunCount == 1 && status.TotalDocuments == 1
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body bytes.Buffer
		_, err = body.ReadFrom(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, body.String(), "libindex_")
	})
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"debug", "text", false},
		{"INFO", "json", false},
		{"WaRn", "", false},
		{"error", "JSON", false},
		{"verbose", "text", true},
		{"info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			app := &cli.App{
				Name: "test",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level", Value: "info"},
					&cli.StringFlag{Name: "log-format", Value: "text"},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}

			err := app.Run([]string{"test", "--log-level", tt.level, "--log-format", tt.format})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
