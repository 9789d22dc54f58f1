package statsserver

import (
	"cmp"
	"net/http"
	"os"
	"slices"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

// Response wraps every JSON body.
type Response[T any] struct {
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// LatencySummary is in milliseconds.
type LatencySummary struct {
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// ProviderSummary is one provider's entry in GET /stats.
type ProviderSummary struct {
	ID          string         `json:"id"`
	Wins        uint64         `json:"wins"`
	Attempts    uint64         `json:"attempts"`
	Errors      uint64         `json:"errors"`
	Pending     uint64         `json:"pending"`
	SuccessRate float64        `json:"success_rate"`
	Samples     int            `json:"samples"`
	LatencyMs   LatencySummary `json:"latency_ms"`
}

// StatsResponse is the GET /stats payload.
type StatsResponse struct {
	Timestamp string            `json:"timestamp"`
	Providers []ProviderSummary `json:"providers"`
}

// LiveResponse is the GET /livez payload.
type LiveResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Hostname string `json:"hostname,omitempty"`
}

type handlers struct {
	src     Source
	service string
	version string
	start   time.Time
}

// Summarize converts a snapshot into provider summaries ordered by id.
func Summarize(snap map[hedge.ProviderID]hedge.ProviderStats) []ProviderSummary {
	out := make([]ProviderSummary, 0, len(snap))
	for id, s := range snap {
		out = append(out, ProviderSummary{
			ID:          string(id),
			Wins:        s.Wins,
			Attempts:    s.Attempts,
			Errors:      s.Errors,
			Pending:     s.Pending(),
			SuccessRate: s.SuccessRate(),
			Samples:     len(s.LatencySamples),
			LatencyMs: LatencySummary{
				Avg: ms(s.AvgLatency()),
				P50: ms(s.Percentile(0.50)),
				P95: ms(s.Percentile(0.95)),
				P99: ms(s.Percentile(0.99)),
			},
		})
	}
	slices.SortFunc(out, func(a, b ProviderSummary) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response[StatsResponse]{
		Data: StatsResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Providers: Summarize(h.src.Snapshot()),
		},
	})
}

func (h *handlers) reset(w http.ResponseWriter, _ *http.Request) {
	h.src.ResetStats()
	writeJSON(w, http.StatusOK, Response[struct{}]{Message: "stats reset"})
}

func (h *handlers) live(w http.ResponseWriter, _ *http.Request) {
	hostname, _ := os.Hostname()
	writeJSON(w, http.StatusOK, Response[LiveResponse]{
		Data: LiveResponse{
			Status:   "ok",
			Service:  h.service,
			Version:  h.version,
			Uptime:   time.Since(h.start).Round(time.Second).String(),
			Hostname: hostname,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
