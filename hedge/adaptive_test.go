package hedge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(l *Ledger, id ProviderID, latencies ...time.Duration) {
	for _, d := range latencies {
		gen := l.RecordAttempt(id)
		l.RecordOutcome(id, gen, true, d)
	}
}

func spread(from, step time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = from + time.Duration(i)*step
	}
	return out
}

func TestAdaptiveDelay_Delay(t *testing.T) {
	tests := []struct {
		name   string
		ad     AdaptiveDelay
		seed   map[ProviderID][]time.Duration
		ids    []ProviderID
		want   time.Duration
		wantOK bool
	}{
		{
			name:   "given too few samples, then not ok",
			ad:     DefaultAdaptiveDelay(),
			seed:   map[ProviderID][]time.Duration{"a": spread(10*time.Millisecond, time.Millisecond, 5)},
			ids:    []ProviderID{"a"},
			wantOK: false,
		},
		{
			name: "given enough samples, then target percentile",
			ad:   AdaptiveDelay{TargetPercentile: 0.9, MinSamples: 10},
			seed: map[ProviderID][]time.Duration{"a": spread(10*time.Millisecond, 10*time.Millisecond, 10)},
			ids:  []ProviderID{"a"},
			// 10ms..100ms, empirical P90 is the 9th sample
			want:   90 * time.Millisecond,
			wantOK: true,
		},
		{
			name: "given two providers, then fastest percentile",
			ad:   AdaptiveDelay{TargetPercentile: 1, MinSamples: 3},
			seed: map[ProviderID][]time.Duration{
				"slow": spread(200*time.Millisecond, 0, 3),
				"fast": spread(20*time.Millisecond, 0, 3),
			},
			ids:    []ProviderID{"slow", "fast"},
			want:   20 * time.Millisecond,
			wantOK: true,
		},
		{
			name: "given provider outside ids, then ignored",
			ad:   AdaptiveDelay{TargetPercentile: 1, MinSamples: 1},
			seed: map[ProviderID][]time.Duration{
				"a": spread(50*time.Millisecond, 0, 2),
				"b": spread(time.Millisecond, 0, 2),
			},
			ids:    []ProviderID{"a"},
			want:   50 * time.Millisecond,
			wantOK: true,
		},
		{
			name: "given delay below floor, then clamped up",
			ad:   AdaptiveDelay{TargetPercentile: 0.5, MinSamples: 1, Floor: 5 * time.Millisecond},
			seed: map[ProviderID][]time.Duration{"a": spread(time.Millisecond, 0, 4)},
			ids:  []ProviderID{"a"},
			want: 5 * time.Millisecond, wantOK: true,
		},
		{
			name: "given delay above ceiling, then clamped down",
			ad:   AdaptiveDelay{TargetPercentile: 0.5, MinSamples: 1, Ceiling: time.Second},
			seed: map[ProviderID][]time.Duration{"a": spread(3*time.Second, 0, 4)},
			ids:  []ProviderID{"a"},
			want: time.Second, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(nil, 0)
			for id, lat := range tt.seed {
				seed(l, id, lat...)
			}

			got, ok := tt.ad.Delay(l.Snapshot(), tt.ids)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAdaptiveDelay_Apply(t *testing.T) {
	registry, err := NewRegistry([]ProviderConfig{{ID: "p1"}, {ID: "p2"}})
	require.NoError(t, err)
	e := New(registry)
	cfg := DefaultHedgeConfig(2)

	ad := AdaptiveDelay{TargetPercentile: 1, MinSamples: 2}
	assert.Equal(t, cfg, ad.Apply(e, cfg), "no samples keeps HedgeAfter")

	// p2 is fast but not an initial provider, so only p1 counts.
	seed(e.Ledger(), "p1", 30*time.Millisecond, 40*time.Millisecond)
	seed(e.Ledger(), "p2", time.Millisecond, time.Millisecond)

	got := ad.Apply(e, cfg)
	assert.Equal(t, 40*time.Millisecond, got.HedgeAfter)
	assert.Equal(t, cfg.MaxProviders, got.MaxProviders)
	assert.Equal(t, 80*time.Millisecond, cfg.HedgeAfter, "input is not mutated")

	assert.Equal(t, cfg, ad.Apply(New(nil), cfg))
}
