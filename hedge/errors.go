package hedge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoProviders is returned when a registry would be empty.
	ErrNoProviders = errors.New("hedge: no providers configured")

	// ErrDuplicateProvider is returned when two providers share an ID.
	ErrDuplicateProvider = errors.New("hedge: duplicate provider id")

	// ErrInvalidProvider is returned for a provider without an ID.
	ErrInvalidProvider = errors.New("hedge: invalid provider")

	// ErrInvalidConfig is returned when a HedgeConfig cannot be raced.
	ErrInvalidConfig = errors.New("hedge: invalid hedge config")

	// ErrAllFailed is matched by a RaceError whose launched providers all failed.
	ErrAllFailed = errors.New("hedge: all providers failed")

	// ErrTimeout is matched by a RaceError that hit the overall timeout.
	ErrTimeout = errors.New("hedge: race timed out")

	// ErrStaleResponse wraps a provider response rejected by MinFreshness.
	ErrStaleResponse = errors.New("hedge: stale response")
)

// Kind classifies a failed race.
type Kind int

const (
	// KindConfig means the race was refused before launching anything.
	KindConfig Kind = iota + 1
	// KindAllFailed means every launched provider failed and none remained.
	KindAllFailed
	// KindTimeout means the deadline elapsed with providers still pending.
	KindTimeout
	// KindCanceled means the caller cancelled the context.
	KindCanceled
)

// String returns the kind's label, used in logs and metric attributes.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config_error"
	case KindAllFailed:
		return "all_failed"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ProviderError is one provider's failure inside a race: a transport error,
// a provider-reported error, or a stale response.
type ProviderError struct {
	Provider ProviderID
	Err      error
	// Latency is measured from the provider's launch to its failure.
	Latency time.Duration
}

// Error implements error.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RaceError is the terminal failure of a race.
//
// It matches ErrAllFailed, ErrTimeout or ErrInvalidConfig with errors.Is
// depending on Kind, and each ProviderError through Unwrap.
type RaceError struct {
	Kind Kind

	// Failures holds one entry per provider that failed before the race ended,
	// in the order they were observed.
	Failures []*ProviderError

	// Elapsed is the time from race start to this failure.
	Elapsed time.Duration

	// Err is the cause for KindConfig and KindCanceled.
	Err error
}

// Error implements error.
func (e *RaceError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindConfig:
		return e.Err.Error()
	case KindAllFailed:
		b.WriteString(ErrAllFailed.Error())
	case KindTimeout:
		fmt.Fprintf(&b, "%s after %s", ErrTimeout.Error(), e.Elapsed.Round(time.Millisecond))
	case KindCanceled:
		fmt.Fprintf(&b, "hedge: race canceled: %v", e.Err)
	default:
		b.WriteString("hedge: race failed")
	}

	if len(e.Failures) > 0 {
		b.WriteString(": [")
		for i, f := range e.Failures {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(f.Error())
		}
		b.WriteString("]")
	}
	return b.String()
}

// Is maps the race kind onto the package sentinels.
func (e *RaceError) Is(target error) bool {
	switch target {
	case ErrAllFailed:
		return e.Kind == KindAllFailed
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrInvalidConfig:
		return e.Kind == KindConfig && errors.Is(e.Err, ErrInvalidConfig)
	}
	return false
}

// Unwrap exposes the cause and every provider failure.
func (e *RaceError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// IsTimeout reports whether err is a race that hit its deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsAllFailed reports whether err is a race whose providers all failed.
func IsAllFailed(err error) bool {
	return errors.Is(err, ErrAllFailed)
}

// FailuresOf returns the per-provider failures carried by a race error.
func FailuresOf(err error) []*ProviderError {
	var re *RaceError
	if errors.As(err, &re) {
		return re.Failures
	}
	return nil
}
