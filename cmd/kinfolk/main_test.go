package main

import (
	"bytes"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/kinfolk/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func quietApp() *cli.App {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return app
}

func TestCommandFlags(t *testing.T) {
	t.Run("seed requires a fixture", func(t *testing.T) {
		err := quietApp().Run([]string{"kinfolk", "seed"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fixture")
	})

	t.Run("batch requires a file", func(t *testing.T) {
		err := quietApp().Run([]string{"kinfolk", "batch"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file")
	})

	t.Run("ask requires a question", func(t *testing.T) {
		err := quietApp().Run([]string{"kinfolk", "ask", "  "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question is required")
	})

	t.Run("workers has a default", func(t *testing.T) {
		var workers *cli.IntFlag
		for _, cmd := range newApp().Commands {
			if cmd.Name != "batch" {
				continue
			}
			for _, f := range cmd.Flags {
				if f, ok := f.(*cli.IntFlag); ok && f.Name == "workers" {
					workers = f
				}
			}
		}
		require.NotNil(t, workers)
		assert.Equal(t, 4, workers.Value)
	})
}

func TestSetupLogger(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			set := flag.NewFlagSet("test", flag.ContinueOnError)
			set.String("log-level", tt.level, "")
			ctx := cli.NewContext(&cli.App{}, set, nil)

			err := setupLogger(ctx)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kinfolk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: postgres\n  url: postgres://localhost/kinfolk\nworkflow:\n  top_k: 7\n"), 0o644))

	newContext := func(args ...string) *cli.Context {
		set := flag.NewFlagSet("test", flag.ContinueOnError)
		for _, name := range []string{"config", "db", "host", "completion-model", "embedding-model"} {
			set.String(name, "", "")
		}
		require.NoError(t, set.Parse(args))
		return cli.NewContext(&cli.App{}, set, nil)
	}

	t.Run("file only", func(t *testing.T) {
		cfg, err := loadConfig(newContext("--config", path))
		require.NoError(t, err)
		assert.Equal(t, config.BackendPostgres, cfg.Storage.Backend)
		assert.Equal(t, 7, cfg.Workflow.TopK)
	})

	t.Run("flags override the file", func(t *testing.T) {
		cfg, err := loadConfig(newContext("--config", path, "--db", filepath.Join(dir, "db"), "--host", "http://gpu:8000", "--completion-model", "llama3.1:8b"))
		require.NoError(t, err)
		assert.Equal(t, config.BackendBadger, cfg.Storage.Backend)
		assert.Equal(t, filepath.Join(dir, "db"), cfg.Storage.Path)
		assert.Equal(t, "http://gpu:8000", cfg.AI.CompletionHost)
		assert.Equal(t, "http://gpu:8000", cfg.AI.EmbeddingHost)
		assert.Equal(t, "llama3.1:8b", cfg.AI.CompletionModel)
		assert.Equal(t, 7, cfg.Workflow.TopK)
	})

	t.Run("no file", func(t *testing.T) {
		cfg, err := loadConfig(newContext())
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(newContext("--config", filepath.Join(dir, "missing.yaml")))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestReadQuestions(t *testing.T) {
	input := "When was John Carpenter born?\n\n# skipped\n  Who was his wife?  \n"
	questions, err := readQuestions(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"When was John Carpenter born?", "Who was his wife?"}, questions)
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinfolk_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := newMetricsRouter(reg)

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok\n", rec.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "kinfolk_test_total 1")
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"answer": "1850"}))
	assert.Equal(t, "{\n  \"answer\": \"1850\"\n}\n", buf.String())
}
