package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv_Providers(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantIDs []string
		wantErr bool
	}{
		{
			name: "given well known urls, then fixed order",
			env: map[string]string{
				"QUICKNODE_RPC_URL": "https://qn",
				"HELIUS_RPC_URL":    "https://helius",
				"TRITON_RPC_URL":    "https://triton",
			},
			wantIDs: []string{"helius", "triton", "quicknode"},
		},
		{
			name: "given extra providers, then appended after well known",
			env: map[string]string{
				"TRITON_RPC_URL":  "https://triton",
				"HEDGE_PROVIDERS": "alchemy=https://alchemy, local=http://localhost:8899",
			},
			wantIDs: []string{"triton", "alchemy", "local"},
		},
		{
			name: "given malformed extra provider, then error",
			env: map[string]string{
				"HEDGE_PROVIDERS": "alchemy",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(mapLookup(tt.env))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			ids := make([]string, len(cfg.Providers))
			for i, p := range cfg.Providers {
				ids[i] = p.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestApplyEnv_HedgeKnobs(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"HELIUS_RPC_URL":          "https://helius",
		"TRITON_RPC_URL":          "https://triton",
		"HEDGE_PRESET":            "aggressive",
		"HEDGE_INITIAL_PROVIDERS": "1",
		"HEDGE_AFTER":             "35ms",
		"HEDGE_MIN_SLOT":          "1000",
		"HEDGE_TIMEOUT":           "750ms",
		"HEDGE_WIDEN_STEP":        "1",
		"HEDGE_ADAPTIVE":          "true",
		"HEDGE_BREAKER":           "true",
		"HEDGE_RATE_LIMIT_RPS":    "25",
	}))
	require.NoError(t, err)

	hc, err := cfg.HedgeConfig()
	require.NoError(t, err)

	assert.Equal(t, 1, hc.InitialProviders)
	assert.Equal(t, 35*time.Millisecond, hc.HedgeAfter)
	assert.Equal(t, 2, hc.MaxProviders)
	require.NotNil(t, hc.MinFreshness)
	assert.Equal(t, uint64(1000), *hc.MinFreshness)
	assert.Equal(t, 750*time.Millisecond, hc.OverallTimeout)
	assert.Equal(t, 1, hc.WidenStep)
	assert.True(t, cfg.Breaker.Enabled)
	assert.True(t, cfg.Hedge.Adaptive)
	assert.InEpsilon(t, 25.0, cfg.RateLimit.RPS, 0.001)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"HEDGE_AFTER":             "soon",
		"HEDGE_INITIAL_PROVIDERS": "two",
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEDGE_AFTER")
	assert.Contains(t, err.Error(), "HEDGE_INITIAL_PROVIDERS")
}

func TestConfig_Validate(t *testing.T) {
	t.Run("given no providers, then ErrNoProviders", func(t *testing.T) {
		assert.ErrorIs(t, Default().Validate(), ErrNoProviders)
	})

	t.Run("given max above provider count, then invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Providers = []Provider{{ID: "a", Endpoint: "http://a"}}
		cfg.Hedge.MaxProviders = 3
		assert.ErrorIs(t, cfg.Validate(), hedge.ErrInvalidConfig)
	})

	t.Run("given duplicate ids, then invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Providers = []Provider{{ID: "a", Endpoint: "http://a"}, {ID: "a", Endpoint: "http://b"}}
		assert.ErrorIs(t, cfg.Validate(), hedge.ErrDuplicateProvider)
	})

	t.Run("given unknown preset, then invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Providers = []Provider{{ID: "a", Endpoint: "http://a"}}
		cfg.Hedge.Preset = "yolo"
		assert.ErrorIs(t, cfg.Validate(), hedge.ErrInvalidConfig)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlPath := filepath.Join(dir, "hedge.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
service_name: wallet
stats_addr: ":9090"
providers:
  - id: helius
    endpoint: https://from-yaml
  - id: local
    endpoint: http://localhost:8899
hedge:
  preset: low-latency
  hedge_after: 15ms
  timeout: 500ms
`), 0o600))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TRITON_RPC_URL=https://from-dotenv\n"), 0o600))
	t.Setenv("HELIUS_RPC_URL", "https://from-env")
	t.Cleanup(func() { _ = os.Unsetenv("TRITON_RPC_URL") })

	cfg, err := Load(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, "wallet", cfg.ServiceName)
	assert.Equal(t, ":9090", cfg.StatsAddr)
	assert.Equal(t, []Provider{
		{ID: "helius", Endpoint: "https://from-env"},
		{ID: "local", Endpoint: "http://localhost:8899"},
		{ID: "triton", Endpoint: "https://from-dotenv"},
	}, cfg.Providers)

	hc, err := cfg.HedgeConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, hc.InitialProviders)
	assert.Equal(t, 15*time.Millisecond, hc.HedgeAfter)
	assert.Equal(t, 3, hc.MaxProviders)
	assert.Equal(t, 500*time.Millisecond, hc.OverallTimeout)
}

func TestLoad_NoProviders(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, wk := range wellKnown {
		t.Setenv(wk.env, "")
	}
	t.Setenv("HEDGE_PROVIDERS", "")

	_, err := Load("")

	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("/does/not/exist.yaml")

	assert.ErrorIs(t, err, os.ErrNotExist)
}
