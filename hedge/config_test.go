package hedge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHedgeConfig_Validate(t *testing.T) {
	valid := HedgeConfig{
		InitialProviders: 1,
		HedgeAfter:       20 * time.Millisecond,
		MaxProviders:     3,
		OverallTimeout:   time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(c *HedgeConfig)
		n       int
		wantErr error
	}{
		{
			name:   "given valid config, then no error",
			mutate: func(*HedgeConfig) {},
			n:      3,
		},
		{
			name:    "given empty registry, then returns ErrNoProviders",
			mutate:  func(*HedgeConfig) {},
			n:       0,
			wantErr: ErrNoProviders,
		},
		{
			name:    "given zero initial providers, then invalid",
			mutate:  func(c *HedgeConfig) { c.InitialProviders = 0 },
			n:       3,
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "given initial above max, then invalid",
			mutate:  func(c *HedgeConfig) { c.InitialProviders = 3; c.MaxProviders = 2 },
			n:       3,
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "given max above registry size, then invalid",
			mutate:  func(c *HedgeConfig) { c.MaxProviders = 4 },
			n:       3,
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "given zero timeout, then invalid",
			mutate:  func(c *HedgeConfig) { c.OverallTimeout = 0 },
			n:       3,
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "given negative hedge delay, then invalid",
			mutate:  func(c *HedgeConfig) { c.HedgeAfter = -time.Millisecond },
			n:       3,
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "given negative widen step, then invalid",
			mutate:  func(c *HedgeConfig) { c.WidenStep = -1 },
			n:       3,
			wantErr: ErrInvalidConfig,
		},
		{
			name:   "given zero hedge delay, then valid",
			mutate: func(c *HedgeConfig) { c.HedgeAfter = 0 },
			n:      3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate(tt.n)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name        string
		preset      string
		n           int
		wantInitial int
		wantAfter   time.Duration
		wantTimeout time.Duration
	}{
		{
			name:        "given default, then 1 initial and 80ms",
			preset:      "default",
			n:           3,
			wantInitial: 1,
			wantAfter:   80 * time.Millisecond,
			wantTimeout: 2 * time.Second,
		},
		{
			name:        "given empty name, then default",
			preset:      "",
			n:           3,
			wantInitial: 1,
			wantAfter:   80 * time.Millisecond,
			wantTimeout: 2 * time.Second,
		},
		{
			name:        "given low-latency, then 2 initial and 20ms",
			preset:      "low-latency",
			n:           3,
			wantInitial: 2,
			wantAfter:   20 * time.Millisecond,
			wantTimeout: time.Second,
		},
		{
			name:        "given conservative, then 1 initial and 100ms",
			preset:      "conservative",
			n:           3,
			wantInitial: 1,
			wantAfter:   100 * time.Millisecond,
			wantTimeout: 3 * time.Second,
		},
		{
			name:        "given aggressive with two providers, then initial capped at 2",
			preset:      "aggressive",
			n:           2,
			wantInitial: 2,
			wantAfter:   20 * time.Millisecond,
			wantTimeout: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Preset(tt.preset, tt.n)
			require.NoError(t, err)

			assert.Equal(t, tt.wantInitial, cfg.InitialProviders)
			assert.Equal(t, tt.wantAfter, cfg.HedgeAfter)
			assert.Equal(t, tt.n, cfg.MaxProviders)
			assert.Equal(t, tt.wantTimeout, cfg.OverallTimeout)
			assert.NoError(t, cfg.Validate(tt.n))
		})
	}

	t.Run("given unknown name, then invalid", func(t *testing.T) {
		_, err := Preset("reckless", 3)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestHedgeConfig_WidenTarget(t *testing.T) {
	tests := []struct {
		name     string
		step     int
		max      int
		launched int
		want     int
	}{
		{name: "given step 0, then jumps to max", step: 0, max: 5, launched: 1, want: 5},
		{name: "given step 1, then adds one", step: 1, max: 5, launched: 1, want: 2},
		{name: "given step 2, then adds two", step: 2, max: 5, launched: 2, want: 4},
		{name: "given step past max, then capped", step: 3, max: 5, launched: 4, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := HedgeConfig{MaxProviders: tt.max, WidenStep: tt.step}
			assert.Equal(t, tt.want, cfg.widenTarget(tt.launched))
		})
	}
}
