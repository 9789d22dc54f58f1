package hedge

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// defaultLatencyWindow is how many latency samples are kept per provider.
const defaultLatencyWindow = 1024

// ProviderStats is a point-in-time copy of one provider's counters.
type ProviderStats struct {
	// Wins counts races this provider won.
	Wins uint64
	// Attempts counts launches against this provider.
	Attempts uint64
	// Errors counts observed failures, stale responses included.
	Errors uint64
	// LatencySamples holds the newest terminal-outcome latencies, oldest first.
	LatencySamples []time.Duration
}

// Pending returns attempts that have no observed outcome: still in flight,
// or abandoned after another provider won.
func (s ProviderStats) Pending() uint64 {
	done := s.Wins + s.Errors
	if done >= s.Attempts {
		return 0
	}
	return s.Attempts - done
}

// SuccessRate returns Wins / (Wins + Errors), or 0 without outcomes.
func (s ProviderStats) SuccessRate() float64 {
	total := s.Wins + s.Errors
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// AvgLatency returns the mean of the latency samples.
func (s ProviderStats) AvgLatency() time.Duration {
	if len(s.LatencySamples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s.LatencySamples {
		total += d
	}
	return total / time.Duration(len(s.LatencySamples))
}

// Percentile returns the empirical p-quantile (0-1) of the latency samples.
func (s ProviderStats) Percentile(p float64) time.Duration {
	if len(s.LatencySamples) == 0 {
		return 0
	}
	xs := make([]float64, len(s.LatencySamples))
	for i, d := range s.LatencySamples {
		xs[i] = float64(d)
	}
	slices.Sort(xs)
	p = min(max(p, 0), 1)
	return time.Duration(stat.Quantile(p, stat.Empirical, xs, nil))
}

// record is one provider's mutable counters plus a circular sample buffer.
type record struct {
	wins     uint64
	attempts uint64
	errors   uint64
	samples  []time.Duration
	head     int
	count    int
}

func (r *record) addSample(d time.Duration) {
	r.samples[r.head] = d
	r.head = (r.head + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

// ordered returns the samples oldest first.
func (r *record) ordered() []time.Duration {
	out := make([]time.Duration, r.count)
	start := (r.head - r.count + len(r.samples)) % len(r.samples)
	for i := range r.count {
		out[i] = r.samples[(start+i)%len(r.samples)]
	}
	return out
}

func (r *record) snapshot() ProviderStats {
	return ProviderStats{
		Wins:           r.wins,
		Attempts:       r.attempts,
		Errors:         r.errors,
		LatencySamples: r.ordered(),
	}
}

// Ledger accumulates per-provider race statistics for the process lifetime.
//
// Each recorded event is applied under a single lock acquisition, so a
// snapshot never shows half of an outcome. The Ledger is safe for
// concurrent use and may be shared by several engines.
//
// Reset starts a new generation. Outcomes of attempts counted in an
// earlier generation are dropped, so Wins + Errors never exceeds Attempts.
type Ledger struct {
	mu      sync.RWMutex
	records map[ProviderID]*record
	window  int
	gen     uint64
}

// NewLedger creates a ledger with zeroed records for ids.
//
// window bounds the latency samples kept per provider; values <= 0 use
// the default of 1024.
func NewLedger(ids []ProviderID, window int) *Ledger {
	if window <= 0 {
		window = defaultLatencyWindow
	}
	l := &Ledger{
		records: make(map[ProviderID]*record, len(ids)),
		window:  window,
	}
	for _, id := range ids {
		l.records[id] = l.newRecord()
	}
	return l
}

func (l *Ledger) newRecord() *record {
	return &record{samples: make([]time.Duration, l.window)}
}

// lookup returns the record for id, creating it if needed. Callers hold mu.
func (l *Ledger) lookup(id ProviderID) *record {
	r, ok := l.records[id]
	if !ok {
		r = l.newRecord()
		l.records[id] = r
	}
	return r
}

// RecordAttempt counts a launch against id and returns the generation the
// attempt belongs to. Pass it back to RecordOutcome.
func (l *Ledger) RecordAttempt(id ProviderID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookup(id).attempts++
	return l.gen
}

// RecordOutcome counts a win (ok) or an error for id and stores its latency.
// Outcomes from a generation older than the last Reset are ignored.
func (l *Ledger) RecordOutcome(id ProviderID, gen uint64, ok bool, latency time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		return
	}
	r := l.lookup(id)
	if ok {
		r.wins++
	} else {
		r.errors++
	}
	r.addSample(latency)
}

// Stats returns a copy of id's record.
func (l *Ledger) Stats(id ProviderID) (ProviderStats, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.records[id]
	if !ok {
		return ProviderStats{}, false
	}
	return r.snapshot(), true
}

// Snapshot returns a copy of every record. Later updates do not affect it.
func (l *Ledger) Snapshot() map[ProviderID]ProviderStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[ProviderID]ProviderStats, len(l.records))
	for id, r := range l.records {
		out[id] = r.snapshot()
	}
	return out
}

// Reset zeroes every record in one step. Known providers stay listed.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	for id := range l.records {
		l.records[id] = l.newRecord()
	}
}
