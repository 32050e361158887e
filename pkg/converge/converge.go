// Package converge sends a state-changing request to a resource and
// then polls it until it reports the state the request asked for.
package converge

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	azerr "github.com/tslight/azure-extras/pkg/errors"
	"github.com/tslight/azure-extras/pkg/metrics"
)

const DefaultRetryWindow = 10 * time.Second

var (
	convergeDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: "converge",
		Name:      "duration_seconds",
		Help:      "Time from sending an action to seeing its terminal state, in seconds.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120, 180},
	}, []string{metrics.LabelKind, metrics.LabelAction, metrics.LabelSuccess})

	pollCount = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "converge",
		Name:      "polls_total",
		Help:      "Count of status reads made while waiting for a terminal state.",
	}, []string{metrics.LabelKind})
)

// Toggle describes one state change and how to tell when it is done.
type Toggle[T any] struct {
	// Name of the resource, for logs and errors
	Name string
	// Kind of resource (site, slot, job, ...), for metrics
	Kind   string
	Action Action
	// State to wait for; defaults to Action.Target()
	Want string

	// Initial, if given, reads the state before anything is sent, so a
	// timeout with no successful poll still has something to report.
	Initial func(context.Context) (T, error)
	// Send issues the state-changing request.
	Send func(context.Context) error
	// Observe reads the resource's current state.
	Observe func(context.Context) (T, error)
	// State extracts the state from an observation.
	State func(T) string

	// Interval between the send and the first poll, and between polls
	Interval time.Duration
	// Timeout for the whole poll loop, measured from the send
	Timeout time.Duration
	// RetryWindow bounds the single retry of a send that could not
	// connect; defaults to DefaultRetryWindow
	RetryWindow time.Duration
}

// Run sends the toggle, then polls until the resource reports the
// wanted state, returning the observation that did.
//
// A send refused by the provider fails at once, without polling. A
// send that could not connect is retried once (see RetryOnce). Each
// poll happens one Interval after the previous send or poll, and only
// if it would start before the Timeout is up; when no further poll
// fits, Run fails with a Timeout error carrying the last state seen
// (which is the state before the send, if no poll got an answer).
// Errors reading the state while polling are logged and otherwise
// treated as no answer.
func Run[T any](ctx context.Context, logger log.Logger, t Toggle[T]) (result T, err error) {
	want := t.Want
	if want == "" {
		want = t.Action.Target()
	}
	logger = log.With(logger, "action", string(t.Action), "kind", t.Kind)

	var last T
	var lastState string
	if t.Initial != nil {
		obs, err := t.Initial(ctx)
		if err != nil {
			level.Warn(logger).Log("msg", "could not read state before sending action", "err", err)
		} else {
			last, lastState = obs, t.State(obs)
			level.Debug(logger).Log("msg", "state before sending action", "state", lastState)
		}
	}

	if err := RetryOnce(ctx, logger, t.RetryWindow, t.Send); err != nil {
		return last, errors.Wrapf(err, "failed to %s %s", t.Action, t.Name)
	}
	level.Info(logger).Log("msg", fmt.Sprintf("sent %s to %s", t.Action, t.Name))

	sent := time.Now()
	defer func() {
		convergeDuration.With(
			metrics.LabelKind, t.Kind,
			metrics.LabelAction, string(t.Action),
			metrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(sent).Seconds())
	}()

	deadline := sent.Add(t.Timeout)
	for polls := 0; ; polls++ {
		// If we don't have time to try again, stop
		if time.Now().Add(t.Interval).After(deadline) {
			break
		}
		if err := sleep(ctx, t.Interval); err != nil {
			return last, errors.Wrapf(err, "waiting for %s to %s", t.Name, t.Action)
		}

		pollCount.With(metrics.LabelKind, t.Kind).Add(1)
		obs, err := t.Observe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, errors.Wrapf(ctx.Err(), "waiting for %s to %s", t.Name, t.Action)
			}
			level.Warn(logger).Log("msg", "could not read state", "poll", polls+1, "err", err)
			continue
		}
		last, lastState = obs, t.State(obs)
		level.Debug(logger).Log("msg", "polled state", "poll", polls+1, "state", lastState, "want", want)
		if lastState == want {
			level.Info(logger).Log("msg", fmt.Sprintf("%s is %s", t.Name, lastState), "elapsed", time.Since(sent).Round(time.Millisecond))
			return obs, nil
		}
	}

	return last, azerr.TimedOut(lastState, "failed to %s %s within %s", t.Action, t.Name, t.Timeout)
}

// RetryOnce calls send, and if it failed to reach the provider calls
// it exactly once more, giving the retry no longer than window. The
// outcome is whatever the second call returns, except that a second
// connection failure (or running out of window) is reported as a
// Connection error.
func RetryOnce(ctx context.Context, logger log.Logger, window time.Duration, send func(context.Context) error) error {
	err := send(ctx)
	if err == nil || !azerr.IsConnection(err) {
		return err
	}
	if window <= 0 {
		window = DefaultRetryWindow
	}
	level.Warn(logger).Log("msg", "transient connection issue, trying again", "err", err)

	retryCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	err = send(retryCtx)
	switch {
	case err == nil:
		return nil
	case azerr.IsConnection(err):
		return err
	case retryCtx.Err() != nil && ctx.Err() == nil:
		return azerr.ConnectionFailed(errors.Wrapf(err, "retry did not complete within %s", window))
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
