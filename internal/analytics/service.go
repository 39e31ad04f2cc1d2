// Package analytics composes country resolution with durable hit counting.
package analytics

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/TomasB/geostat/internal/counter"
	"github.com/TomasB/geostat/internal/data"
)

// incrementTimeout bounds the detached increment so an unhealthy store
// cannot accumulate goroutines forever.
const incrementTimeout = 10 * time.Second

// maxPendingIncrements caps the number of detached increments in flight.
// With a stalled store, hits beyond the cap are dropped with a log entry
// instead of piling up a goroutine per request.
const maxPendingIncrements = 128

// CounterStore is the slice of the counter store the service needs.
type CounterStore interface {
	Increment(ctx context.Context, code string) error
	List(ctx context.Context) ([]counter.Entry, error)
}

// Service resolves IP addresses to country codes and counts hits per
// country. Counting is best effort: a persistence failure is logged, never
// surfaced to the lookup caller, and never delays the lookup response.
type Service struct {
	lookup  data.CountryLookup
	counts  CounterStore
	logger  *slog.Logger
	pending chan struct{}
}

// NewService creates a Service from a resolver and a counter store. A nil
// logger falls back to slog.Default.
func NewService(lookup data.CountryLookup, counts CounterStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		lookup:  lookup,
		counts:  counts,
		logger:  logger,
		pending: make(chan struct{}, maxPendingIncrements),
	}
}

// ResolveAndCount resolves ip to a country code and records one hit for it.
// The second return is false when the address is not in the geo database or
// the lookup fails; no hit is recorded in that case. The increment runs
// detached from the caller: the code is returned immediately, and the count
// lands (or fails, and is logged) in the background.
func (s *Service) ResolveAndCount(ctx context.Context, ip net.IP) (string, bool) {
	code, err := s.lookup.LookupCountry(ip)
	if err != nil {
		s.logger.Warn("country lookup failed", "ip", ip.String(), "error", err)
		return "", false
	}
	if code == "" {
		return "", false
	}

	select {
	case s.pending <- struct{}{}:
	default:
		s.logger.Warn("dropping country hit, increment queue is saturated", "country", code)
		return code, true
	}

	go func() {
		defer func() { <-s.pending }()

		// Detach from the request context so an already-answered caller
		// cannot cancel the count.
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), incrementTimeout)
		defer cancel()

		if err := s.counts.Increment(ictx, code); err != nil {
			s.logger.Error("failed to record country hit", "country", code, "error", err)
		}
	}()

	return code, true
}

// Report returns the accumulated per-country hit counts in unspecified
// order. Unlike counting, reporting has no degraded mode, so store failures
// propagate.
func (s *Service) Report(ctx context.Context) ([]counter.Entry, error) {
	return s.counts.List(ctx)
}
