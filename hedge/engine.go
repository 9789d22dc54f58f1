package hedge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Response is what an Operation returns from one provider: the decoded
// value and the freshness marker the provider reported for it.
type Response[T any] struct {
	Value     T
	Freshness uint64
}

// Operation issues one logical call against a single provider.
//
// It must honour ctx: the engine cancels it when another provider wins or
// the race ends. An Operation that ignores cancellation is abandoned, not
// awaited.
type Operation[T any] func(ctx context.Context, p ProviderConfig) (Response[T], error)

// Result is a successful race.
type Result[T any] struct {
	// Provider is the winner.
	Provider ProviderID
	// Value is the winner's decoded response.
	Value T
	// Freshness is the winner's freshness marker.
	Freshness uint64
	// Latency is measured from race start to the winning completion.
	Latency time.Duration
	// ProviderLatency is measured from the winner's own launch.
	ProviderLatency time.Duration
	// Launched is how many providers were started before the race ended.
	Launched int
}

// Engine races operations across a fixed provider registry and records
// every observed outcome in its Ledger.
//
// An Engine is safe for concurrent use; concurrent races share only the
// Ledger and the optional breaker and limiter state.
type Engine struct {
	registry *Registry
	ledger   *Ledger
	cfg      *internalConfig
	breakers map[ProviderID]circuitBreaker
	limiters map[ProviderID]*rate.Limiter
}

// New creates an Engine over registry.
//
// Example:
//
//	registry, err := hedge.NewRegistry([]hedge.ProviderConfig{
//	    {ID: "helius", Endpoint: heliusURL},
//	    {ID: "triton", Endpoint: tritonURL},
//	})
//	if err != nil {
//	    return err
//	}
//	engine := hedge.New(registry, hedge.WithServiceName("wallet"))
func New(registry *Registry, opts ...Option) *Engine {
	cfg := newConfig(opts...)

	var ids []ProviderID
	if registry != nil {
		ids = registry.IDs()
	}

	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewLedger(ids, cfg.LatencyWindow)
	}

	return &Engine{
		registry: registry,
		ledger:   ledger,
		cfg:      cfg,
		breakers: newBreakers(ids, cfg),
		limiters: newLimiters(ids, cfg.RateLimitConfig),
	}
}

// Registry returns the providers this engine races.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Ledger returns the ledger this engine records into.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Snapshot returns a copy of every provider's statistics.
func (e *Engine) Snapshot() map[ProviderID]ProviderStats {
	return e.ledger.Snapshot()
}

// ResetStats zeroes every provider's statistics.
func (e *Engine) ResetStats() {
	e.ledger.Reset()
}

func (e *Engine) providerCount() int {
	if e.registry == nil {
		return 0
	}
	return e.registry.Len()
}

// completion is posted by an attempt goroutine when its call returns.
type completion[T any] struct {
	provider ProviderID
	gen      uint64
	resp     Response[T]
	err      error
	latency  time.Duration
}

// race is the state of one Race call. Only the race goroutine touches it.
type race[T any] struct {
	engine *Engine
	cfg    HedgeConfig
	op     Operation[T]

	ctx     context.Context
	span    trace.Span
	logger  zerolog.Logger
	attrs   []attribute.KeyValue
	start   time.Time
	results chan completion[T]

	// timerC is nil once every allowed provider has been launched.
	timer  *time.Timer
	timerC <-chan time.Time

	launched int
	pending  int
	ticks    int
	failures []*ProviderError
}

// Race issues op against the registry's providers under cfg and returns
// the first acceptable response.
//
// Providers are launched in registration order: InitialProviders at once,
// more as the widening schedule fires, and immediately whenever every
// launched provider has failed while some remain. The race ends on the
// first acceptable response, when every launched provider has failed with
// none left to launch, or at OverallTimeout, whichever comes first. A
// failed race returns a *RaceError.
//
// Outcomes observed before the race ends are recorded in the Ledger.
// Providers still in flight at the end are cancelled and their late
// results are discarded, so their attempts stay without a win or error.
func Race[T any](ctx context.Context, e *Engine, cfg HedgeConfig, op Operation[T]) (Result[T], error) {
	attrs := e.cfg.baseAttributes()

	err := cfg.Validate(e.providerCount())
	if err == nil && op == nil {
		err = fmt.Errorf("%w: nil operation", ErrInvalidConfig)
	}
	if err != nil {
		e.cfg.Metrics.recordRace(ctx, attrs, KindConfig.String(), 0)
		return Result[T]{}, &RaceError{Kind: KindConfig, Err: err}
	}

	start := time.Now()
	raceCtx, cancel := context.WithDeadline(ctx, start.Add(cfg.OverallTimeout))
	defer cancel()

	raceID := uuid.NewString()
	raceCtx, span := e.cfg.Tracer.Start(raceCtx, "hedge.race",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(raceSpanAttributes(raceID, cfg, e.cfg.ServiceName)...),
	)
	defer span.End()

	r := &race[T]{
		engine:  e,
		cfg:     cfg,
		op:      op,
		ctx:     raceCtx,
		span:    span,
		logger:  e.cfg.Logger.With().Str("race_id", raceID).Logger(),
		attrs:   attrs,
		start:   start,
		results: make(chan completion[T], cfg.MaxProviders),
	}

	return r.run()
}

func (r *race[T]) run() (Result[T], error) {
	r.launchUpTo(r.cfg.InitialProviders)
	if r.launched < r.cfg.MaxProviders {
		r.timer = time.NewTimer(r.cfg.HedgeAfter)
		defer r.timer.Stop()
		r.timerC = r.timer.C
	}

	for {
		if r.pending == 0 {
			if r.launched >= r.cfg.MaxProviders {
				return r.fail(KindAllFailed, nil)
			}
			r.widen(r.cfg.widenTarget(r.launched), "exhausted")
		}

		select {
		case c := <-r.results:
			r.pending--
			if err := r.expired(); err != nil {
				return r.failOnContext(err)
			}
			if res, ok := r.observe(c); ok {
				return res, nil
			}

		case <-r.timerC:
			r.ticks++
			r.widen(r.cfg.widenTarget(r.launched), "hedge_after")
			if r.timerC != nil {
				next := r.start.Add(time.Duration(r.ticks+1) * r.cfg.HedgeAfter)
				r.timer.Reset(time.Until(next))
			}

		case <-r.ctx.Done():
			return r.failOnContext(r.ctx.Err())
		}
	}
}

// expired reports the race context error, treating the deadline as passed
// even if the context has not noticed yet.
func (r *race[T]) expired() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if time.Since(r.start) >= r.cfg.OverallTimeout {
		return context.DeadlineExceeded
	}
	return nil
}

// observe applies one completion. ok reports a winner.
func (r *race[T]) observe(c completion[T]) (Result[T], bool) {
	e := r.engine
	err := c.err
	if err == nil && !IsAcceptable(c.resp.Freshness, r.cfg.MinFreshness) {
		err = staleError(c.resp.Freshness, *r.cfg.MinFreshness)
	}

	if err == nil {
		e.ledger.RecordOutcome(c.provider, c.gen, true, c.latency)
		e.cfg.Metrics.recordWin(r.ctx, r.attrs, c.provider, c.latency)

		res := Result[T]{
			Provider:        c.provider,
			Value:           c.resp.Value,
			Freshness:       c.resp.Freshness,
			Latency:         time.Since(r.start),
			ProviderLatency: c.latency,
			Launched:        r.launched,
		}

		r.span.AddEvent("win", trace.WithAttributes(
			attribute.String("hedge.provider", string(c.provider)),
			attribute.String("hedge.freshness", strconv.FormatUint(c.resp.Freshness, 10)),
		))
		r.span.SetAttributes(
			attribute.String("hedge.winner", string(c.provider)),
			attribute.Int("hedge.launched", r.launched),
		)
		r.span.SetStatus(codes.Ok, "")
		e.cfg.Metrics.recordRace(r.ctx, r.attrs, "success", res.Latency)

		r.logger.Debug().
			Str("provider", string(c.provider)).
			Uint64("freshness", c.resp.Freshness).
			Dur("latency", res.Latency).
			Dur("provider_latency", c.latency).
			Int("launched", r.launched).
			Msg("race won")
		return res, true
	}

	errType := classifyError(err)
	e.ledger.RecordOutcome(c.provider, c.gen, false, c.latency)
	e.cfg.Metrics.recordProviderError(r.ctx, r.attrs, c.provider, errType, c.latency)
	r.failures = append(r.failures, &ProviderError{
		Provider: c.provider,
		Err:      err,
		Latency:  c.latency,
	})

	r.span.AddEvent("provider_error", trace.WithAttributes(
		attribute.String("hedge.provider", string(c.provider)),
		attribute.String("error.type", errType),
	))
	r.logger.Debug().
		Err(err).
		Str("provider", string(c.provider)).
		Str("error_type", errType).
		Dur("latency", c.latency).
		Msg("provider failed")
	return Result[T]{}, false
}

// widen launches providers until target are in flight or finished.
func (r *race[T]) widen(target int, reason string) {
	if target <= r.launched {
		return
	}
	from := r.launched
	r.launchUpTo(target)
	if r.launched >= r.cfg.MaxProviders {
		r.timerC = nil
	}

	r.engine.cfg.Metrics.recordWidening(r.ctx, r.attrs, reason)
	r.span.AddEvent("widen", trace.WithAttributes(
		attribute.String("hedge.widen_reason", reason),
		attribute.Int("hedge.from", from),
		attribute.Int("hedge.to", r.launched),
	))
	r.logger.Debug().
		Str("reason", reason).
		Int("from", from).
		Int("to", r.launched).
		Dur("elapsed", time.Since(r.start)).
		Msg("widening fan-out")
}

// launchUpTo starts registry entries in order until target are launched.
func (r *race[T]) launchUpTo(target int) {
	e := r.engine
	for r.launched < target {
		p := e.registry.at(r.launched)
		r.launched++
		r.pending++

		gen := e.ledger.RecordAttempt(p.ID)
		e.cfg.Metrics.recordAttempt(r.ctx, r.attrs, p.ID)
		r.span.AddEvent("launch", trace.WithAttributes(
			attribute.String("hedge.provider", string(p.ID)),
		))

		go r.attempt(p, gen)
	}
}

// attempt runs op against p and posts its completion. It never touches
// the Ledger and never blocks on send.
func (r *race[T]) attempt(p ProviderConfig, gen uint64) {
	started := time.Now()
	resp, err := invoke(r.ctx, r.engine, p, r.op)
	r.results <- completion[T]{
		provider: p.ID,
		gen:      gen,
		resp:     resp,
		err:      err,
		latency:  time.Since(started),
	}
}

// failOnContext converts a context error into the terminal failure.
func (r *race[T]) failOnContext(err error) (Result[T], error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return r.fail(KindTimeout, nil)
	}
	return r.fail(KindCanceled, err)
}

func (r *race[T]) fail(kind Kind, cause error) (Result[T], error) {
	raceErr := &RaceError{
		Kind:     kind,
		Failures: r.failures,
		Elapsed:  time.Since(r.start),
		Err:      cause,
	}

	setSpanError(r.span, raceErr, kind.String())
	r.span.SetAttributes(attribute.Int("hedge.launched", r.launched))
	r.engine.cfg.Metrics.recordRace(context.WithoutCancel(r.ctx), r.attrs, kind.String(), raceErr.Elapsed)

	r.logger.Warn().
		Err(raceErr).
		Str("outcome", kind.String()).
		Int("launched", r.launched).
		Int("failures", len(r.failures)).
		Dur("elapsed", raceErr.Elapsed).
		Msg("race failed")
	return Result[T]{}, raceErr
}

// invoke runs one provider call through chaos, rate limiting and the
// circuit breaker, in that order.
func invoke[T any](
	ctx context.Context,
	e *Engine,
	p ProviderConfig,
	op Operation[T],
) (resp Response[T], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errPanic, rec)
		}
	}()

	if chaos, ok := e.cfg.Chaos[p.ID]; ok {
		if err := chaos.inject(ctx); err != nil {
			return resp, err
		}
	}

	if limiter := e.limiters[p.ID]; limiter != nil {
		if err := acquire(ctx, limiter, e.cfg.RateLimitConfig.WaitOnLimit); err != nil {
			return resp, err
		}
	}

	cb := e.breakers[p.ID]
	if cb == nil {
		return op(ctx, p)
	}

	_, err = cb.Execute(func() (struct{}, error) {
		var opErr error
		resp, opErr = op(ctx, p)
		return struct{}{}, opErr
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		e.cfg.Metrics.recordBreakerRequest(ctx, p.ID, "rejected")
	case errors.Is(err, context.Canceled):
		e.cfg.Metrics.recordBreakerRequest(ctx, p.ID, "excluded")
	case err != nil:
		e.cfg.Metrics.recordBreakerRequest(ctx, p.ID, "failure")
	default:
		e.cfg.Metrics.recordBreakerRequest(ctx, p.ID, "success")
	}
	return resp, err
}
