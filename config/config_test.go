package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, workflow.DefaultConfig(), cfg.WorkflowConfig())

	if diff := cmp.Diff(ai.DefaultConfig(), cfg.AIConfig()); diff != "" {
		t.Errorf("ai config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_OverridesOnlyGivenKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
ai:
  completion_host: http://gpu-box:8000
  completion_model: llama3.1:8b
  timeout: 90s
storage:
  backend: postgres
  url: postgres://kinfolk@localhost/kinfolk
workflow:
  top_k: 8
  store_timeout: 5s
  confidence_review: true
metrics:
  addr: ":9090"
`))
	require.NoError(t, err)

	want := Default()
	want.AI.CompletionHost = "http://gpu-box:8000"
	want.AI.CompletionModel = "llama3.1:8b"
	want.AI.Timeout = 90 * time.Second
	want.Storage.Backend = BackendPostgres
	want.Storage.URL = "postgres://kinfolk@localhost/kinfolk"
	want.Workflow.TopK = 8
	want.Workflow.StoreTimeout = 5 * time.Second
	want.Workflow.ConfidenceReview = true
	want.Metrics.Addr = ":9090"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	aiCfg := cfg.AIConfig()
	assert.Equal(t, "http://gpu-box:8000/v1", aiCfg.CompletionHost)
	assert.Equal(t, "http://localhost:11434/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, 90*time.Second, aiCfg.Timeout)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"unknown backend", "storage:\n  backend: sqlite\n", ErrUnknownBackend},
		{"badger without path", "storage:\n  path: \"\"\n", ErrStoragePathRequired},
		{"postgres without url", "storage:\n  backend: postgres\n", ErrStorageURLRequired},
		{"similarity out of range", "search:\n  min_similarity: 1.5\n", ErrInvalidSearch},
		{"negative boost", "search:\n  verbatim_boost: -0.1\n", ErrInvalidSearch},
		{"missing model", "ai:\n  completion_model: \"\"\n", ai.ErrCompletionModelRequired},
		{"bad workflow", "workflow:\n  top_k: 0\n", workflow.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse([]byte("workflow:\n  topk: 3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "topk")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Parse([]byte("workflow:\n  store_timeout: soon\n"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinfolk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: /var/lib/kinfolk\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/kinfolk", cfg.Storage.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
