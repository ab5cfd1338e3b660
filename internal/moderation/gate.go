// Package moderation decides whether outgoing text may be stored.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ripplechat/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrUnavailable means no verdict could be obtained. The gate fails closed:
// callers must treat it as a failed send, never as an allow.
var ErrUnavailable = errors.New("moderation unavailable")

// Result is the oracle's raw answer.
type Result struct {
	IsProfane bool   `json:"isProfane"`
	Reason    string `json:"reason"`
}

// Oracle classifies a piece of text.
type Oracle interface {
	Moderate(ctx context.Context, text string) (Result, error)
}

// Verdict is the gate's decision for one send attempt.
type Verdict struct {
	Allowed bool
	Reason  string
}

type Options struct {
	// Timeout bounds a single oracle call. Zero means no extra bound.
	Timeout time.Duration
	// MaxFailures consecutive oracle failures open the breaker.
	MaxFailures uint32
	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration
}

const defaultReason = "flagged by moderation"

// Gate wraps an Oracle with the flagged/unavailable policy. It never retries.
type Gate struct {
	oracle  Oracle
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewGate(oracle Oracle, opts Options) *Gate {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:        "moderation",
		MaxRequests: 1,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		// A caller giving up is not an oracle fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("moderation breaker state")
		},
	}
	return &Gate{oracle: oracle, cb: gobreaker.NewCircuitBreaker(st), timeout: opts.Timeout}
}

// Evaluate runs text through the oracle once.
func (g *Gate) Evaluate(ctx context.Context, text string) (Verdict, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.oracle.Moderate(ctx, text)
	})
	metrics.ModerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModerationTotal.WithLabelValues("unavailable").Inc()
		return Verdict{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	res := out.(Result)
	if res.IsProfane {
		metrics.ModerationTotal.WithLabelValues("rejected").Inc()
		reason := strings.TrimSpace(res.Reason)
		if reason == "" {
			reason = defaultReason
		}
		return Verdict{Allowed: false, Reason: reason}, nil
	}
	metrics.ModerationTotal.WithLabelValues("allowed").Inc()
	return Verdict{Allowed: true}, nil
}
