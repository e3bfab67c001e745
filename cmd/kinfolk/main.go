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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/poiesic/kinfolk"
	"github.com/poiesic/kinfolk/batch"
	"github.com/poiesic/kinfolk/config"
	"github.com/poiesic/kinfolk/fixture"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kinfolk",
		Usage: "Answer questions about family history records with cited sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"KINFOLK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "OpenAI-compatible host for completions and embeddings (overrides config)",
			},
			&cli.StringFlag{
				Name:  "completion-model",
				Usage: "Completion model name (overrides config)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer one question",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full response as JSON",
					},
				},
			},
			{
				Name:   "batch",
				Usage:  "Answer every question in a file, one per line",
				Action: batchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Question file; blank lines and lines starting with # are skipped",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of questions answered at once",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print each response as JSON",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve /metrics and /healthz on this address while running (overrides config)",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load passages and genealogy records from a YAML fixture",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "fixture",
						Usage:    "Path to fixture file",
						Required: true,
					},
				},
			},
		},
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if db := c.String("db"); db != "" {
		cfg.Storage.Backend = config.BackendBadger
		cfg.Storage.Path = db
	}
	if host := c.String("host"); host != "" {
		cfg.AI.CompletionHost = host
		cfg.AI.EmbeddingHost = host
	}
	if model := c.String("completion-model"); model != "" {
		cfg.AI.CompletionModel = model
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.AI.EmbeddingModel = model
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assistant, err := kinfolk.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open assistant: %w", err)
	}
	defer assistant.Close()

	resp, err := assistant.Ask(ctx, question)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, resp)
	}
	fmt.Fprint(c.App.Writer, resp.Format(cfg.Workflow.MaxSourcesListed))
	return nil
}

func batchCommand(c *cli.Context) error {
	questions, err := readQuestionFile(c.String("file"))
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions in %s", c.String("file"))
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	assistant, err := kinfolk.Open(ctx, cfg, kinfolk.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("failed to open assistant: %w", err)
	}
	defer assistant.Close()

	if cfg.Metrics.Addr != "" {
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: newMetricsRouter(reg)}
		go func() {
			slog.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "err", err)
			}
		}()
	}

	runner, err := batch.NewRunner(assistant.Engine(), batch.WithPoolSize(c.Int("workers")))
	if err != nil {
		return err
	}
	defer runner.Release()

	start := time.Now()
	results := runner.Run(ctx, questions)

	failed, tokens := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "question %d (%q) failed: %v\n", r.Index+1, r.Question, r.Err)
			continue
		}
		tokens += r.Response.TotalTokens()
		if c.Bool("json") {
			if err := writeJSON(c.App.Writer, r.Response); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(c.App.Writer, "Q%d: %s\n%s\n", r.Index+1, r.Question, r.Response.Format(cfg.Workflow.MaxSourcesListed))
	}

	fmt.Fprintf(c.App.ErrWriter, "Answered %d of %d questions in %s using %d LLM tokens\n",
		len(results)-failed, len(results), time.Since(start).Round(time.Millisecond), tokens)
	if failed > 0 {
		return fmt.Errorf("%d questions failed", failed)
	}
	return nil
}

func seedCommand(c *cli.Context) error {
	fx, err := fixture.Load(c.String("fixture"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	assistant, err := kinfolk.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open assistant: %w", err)
	}
	defer assistant.Close()

	summary, err := assistant.Seed(ctx, fx)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Seeded %d passages, %d persons, %d relationships, %d facts\n",
		summary.Passages, summary.Persons, summary.Relationships, summary.Facts)
	return nil
}

// newMetricsRouter serves the Prometheus registry and a liveness probe.
func newMetricsRouter(reg *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	}).Methods(http.MethodGet)
	return router
}

// readQuestionFile returns the non-blank, non-comment lines of path.
func readQuestionFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question file: %w", err)
	}
	defer f.Close()
	return readQuestions(f)
}

func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	return questions, scanner.Err()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
