package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned, wrapped, when a request would have to
// wait for its host's limiter past its context's deadline.
var ErrRateLimited = errors.New("rate limited")

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps track of per-host rate limiting for an arbitrary
// set of hosts. ARM throttles per subscription and answers with `HTTP
// 429 Too many requests` when a fan-out polls too eagerly.
//
// Use `*RateLimiters.RoundTripper(rt)` to obtain a rate limited HTTP
// transport. The RoundTripper reacts to a 429 response by halving the
// limit for that host, and to a successful response by increasing it
// modestly back towards the given ideal.
type RateLimiters struct {
	RPS     float64
	Burst   int
	Logger  log.Logger
	perHost map[string]*rate.Limiter
	mu      sync.Mutex
}

func (limiters *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > limiters.RPS {
		return limiters.RPS
	}
	return limit
}

func (limiters *RateLimiters) limiter(host string) *rate.Limiter {
	if limiters.perHost == nil {
		limiters.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := limiters.perHost[host]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(limiters.RPS), limiters.Burst)
		limiters.perHost[host] = rl
	}
	return rl
}

// backOff reduces the limit for a particular host.
func (limiters *RateLimiters) backOff(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	limiter := limiters.limiter(host)
	oldLimit := float64(limiter.Limit())
	newLimit := limiters.clip(oldLimit / backOffBy)
	if oldLimit != newLimit && limiters.Logger != nil {
		level.Info(limiters.Logger).Log("msg", "reducing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Recover bumps the limit for a host back up again.
func (limiters *RateLimiters) Recover(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	if limiters.perHost == nil {
		return
	}
	if limiter, ok := limiters.perHost[host]; ok {
		oldLimit := float64(limiter.Limit())
		newLimit := limiters.clip(oldLimit * recoverBy)
		if newLimit != oldLimit && limiters.Logger != nil {
			level.Debug(limiters.Logger).Log("msg", "increasing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
		}
		limiter.SetLimit(rate.Limit(newLimit))
	}
}

// Limit returns the current limit for host, or the ideal if nothing
// has been sent there yet.
func (limiters *RateLimiters) Limit(host string) float64 {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	if rl, ok := limiters.perHost[host]; ok {
		return float64(rl.Limit())
	}
	return limiters.RPS
}

// RoundTripper wraps rt so that every request waits its turn with the
// limiter of the host it is going to.
func (limiters *RateLimiters) RoundTripper(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &roundTripRateLimiter{limiters: limiters, tx: rt}
}

type roundTripRateLimiter struct {
	limiters *RateLimiters
	tx       http.RoundTripper
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	host := r.URL.Host
	t.limiters.mu.Lock()
	rl := t.limiters.limiter(host)
	t.limiters.mu.Unlock()

	// Wait errors out if the request cannot be processed within
	// the deadline. This is pre-emptive, instead of waiting the
	// entire duration.
	if err := rl.Wait(r.Context()); err != nil {
		if ctxErr := r.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(ErrRateLimited, "%s: %v", host, err)
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		t.limiters.backOff(host)
	} else if resp.StatusCode < 400 {
		t.limiters.Recover(host)
	}
	return resp, err
}
