package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshop/internal/order"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StateBackend)
	assert.Equal(t, "file", cfg.EventSink)
	assert.Equal(t, time.Minute, cfg.SnapshotInterval)
	assert.Equal(t, order.PolicySequential, cfg.StockPolicy)
	assert.True(t, cfg.FileChangelog())
}

func TestEnvironmentDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("STATE_BACKEND", "pebble")
	t.Setenv("SNAPSHOT_INTERVAL", "15")
	t.Setenv("STOCK_POLICY", "two-phase")
	t.Setenv("CACHE_TTL", "30s")

	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "pebble", cfg.StateBackend)
	assert.Equal(t, 15*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, order.PolicyTwoPhase, cfg.StockPolicy)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)

	// flags beat the environment
	cfg, err = parse(t, "-http-addr", ":7000", "-stock-policy", "sequential")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, order.PolicySequential, cfg.StockPolicy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"-state-backend", "mysql"}},
		{"postgres without url", []string{"-state-backend", "postgres"}},
		{"unknown policy", []string{"-stock-policy", "optimistic"}},
		{"kafka sink without bootstrap", []string{"-event-sink", "kafka"}},
		{"unknown sink", []string{"-event-sink", "s3"}},
		{"kafka manifest without bootstrap", []string{"-manifest-sink", "both"}},
		{"negative interval", []string{"-snapshot-interval", "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			assert.Error(t, err)
		})
	}

	_, err := parse(t, "-state-backend", "postgres", "-database-url", "postgres://localhost/webshop",
		"-event-sink", "both", "-kafka-bootstrap", "localhost:9092")
	assert.NoError(t, err)
}

func TestLoadEnv_Local(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("REDIS_ADDR=localhost:6379\n"), 0o644))
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("APP_ENV", "local")
	t.Setenv("REDIS_ADDR", "")
	require.NoError(t, os.Unsetenv("REDIS_ADDR"))
	LoadEnv()
	assert.Equal(t, "localhost:6379", os.Getenv("REDIS_ADDR"))
	require.NoError(t, os.Unsetenv("REDIS_ADDR"))
}
