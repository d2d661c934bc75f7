package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kjannette/ape-dashboard/internal/httputil"
	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// source is the HTTP plumbing shared by the remote providers: a rate limiter
// in front of a circuit breaker in front of the retrying client.
type source struct {
	name       string
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

func newSource(name, baseURL string, limit rate.Limit, burst int) *source {
	log := logger.Named("pricing")
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// a caller giving up says nothing about the provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("provider breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &source{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker[struct{}](st),
	}
}

func (s *source) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		// Wait only fails when ctx is done or would be done before a token frees up
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		return fmt.Errorf("%s rate limit: %v: %w", s.name, err, cause)
	}

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, httputil.GetJSON(ctx, s.httpClient, s.retry, url, headers, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.PriceFetches.WithLabelValues(s.name, "open").Inc()
		return fmt.Errorf("%s unavailable: %w", s.name, err)
	}
	if err != nil {
		return fmt.Errorf("%s fetch: %w", s.name, err)
	}
	return nil
}
