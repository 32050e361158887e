package converge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	azerr "github.com/tslight/azure-extras/pkg/errors"
)

// fakeResource reports states from a script, one per read, repeating
// the last one once the script runs out.
type fakeResource struct {
	states []string
	reads  int32
	sends  int32
	sendFn func(n int32) error
}

func (f *fakeResource) send(ctx context.Context) error {
	n := atomic.AddInt32(&f.sends, 1)
	if f.sendFn != nil {
		return f.sendFn(n)
	}
	return nil
}

func (f *fakeResource) observe(ctx context.Context) (string, error) {
	n := int(atomic.AddInt32(&f.reads, 1))
	if n > len(f.states) {
		n = len(f.states)
	}
	s := f.states[n-1]
	if s == "!" {
		return "", errors.New("transient read failure")
	}
	return s, nil
}

func (f *fakeResource) toggle(action Action) Toggle[string] {
	return Toggle[string]{
		Name:     "web1",
		Kind:     "site",
		Action:   action,
		Send:     f.send,
		Observe:  f.observe,
		State:    func(s string) string { return s },
		Interval: 5 * time.Millisecond,
		Timeout:  200 * time.Millisecond,
	}
}

func TestConvergesOnFirstMatchingPoll(t *testing.T) {
	f := &fakeResource{states: []string{"Running", "Stopping", "Stopped", "Running"}}
	state, err := Run(context.Background(), log.NewNopLogger(), f.toggle(Stop))
	require.NoError(t, err)
	assert.Equal(t, Stopped, state)
	assert.EqualValues(t, 3, f.reads)
	assert.EqualValues(t, 1, f.sends)
}

func TestAlreadyInTargetState(t *testing.T) {
	f := &fakeResource{states: []string{"Stopped"}}
	state, err := Run(context.Background(), log.NewNopLogger(), f.toggle(Stop))
	require.NoError(t, err)
	assert.Equal(t, Stopped, state)
	assert.EqualValues(t, 1, f.reads)
}

func TestTimeoutCarriesLastObservedState(t *testing.T) {
	f := &fakeResource{states: []string{"Stopping"}}
	toggle := f.toggle(Stop)
	toggle.Timeout = 30 * time.Millisecond

	state, err := Run(context.Background(), log.NewNopLogger(), toggle)
	require.Error(t, err)
	assert.True(t, azerr.IsTimeout(err))
	assert.Equal(t, "Stopping", state)

	var e *azerr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "Stopping", e.State)
	assert.Contains(t, err.Error(), `last state "Stopping"`)
}

func TestTimeoutShorterThanIntervalNeverPolls(t *testing.T) {
	f := &fakeResource{states: []string{"Stopped"}}
	toggle := f.toggle(Stop)
	toggle.Interval = 50 * time.Millisecond
	toggle.Timeout = 10 * time.Millisecond
	toggle.Initial = func(context.Context) (string, error) { return "Running", nil }

	state, err := Run(context.Background(), log.NewNopLogger(), toggle)
	require.Error(t, err)
	assert.True(t, azerr.IsTimeout(err))
	assert.Equal(t, "Running", state)
	assert.EqualValues(t, 0, f.reads)
	assert.EqualValues(t, 1, f.sends)
}

func TestPollCountBoundedByTimeout(t *testing.T) {
	f := &fakeResource{states: []string{"Starting"}}
	toggle := f.toggle(Start)
	toggle.Interval = 10 * time.Millisecond
	toggle.Timeout = 55 * time.Millisecond

	_, err := Run(context.Background(), log.NewNopLogger(), toggle)
	require.Error(t, err)
	assert.True(t, azerr.IsTimeout(err))
	assert.LessOrEqual(t, atomic.LoadInt32(&f.reads), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&f.reads), int32(1))
}

func TestRefusedSendDoesNotPoll(t *testing.T) {
	f := &fakeResource{
		states: []string{"Running"},
		sendFn: func(int32) error { return azerr.RequestFailed(409, "POST stop: 409 Conflict") },
	}
	_, err := Run(context.Background(), log.NewNopLogger(), f.toggle(Stop))
	require.Error(t, err)
	assert.True(t, azerr.IsRequest(err))
	assert.Equal(t, 409, azerr.StatusCode(err))
	assert.EqualValues(t, 1, f.sends)
	assert.EqualValues(t, 0, f.reads)
}

func TestReadErrorsWhilePollingAreSkipped(t *testing.T) {
	f := &fakeResource{states: []string{"!", "!", "Running"}}
	state, err := Run(context.Background(), log.NewNopLogger(), f.toggle(Start))
	require.NoError(t, err)
	assert.Equal(t, Running, state)
	assert.EqualValues(t, 3, f.reads)
}

func TestFailedInitialReadLeavesStateEmpty(t *testing.T) {
	f := &fakeResource{states: []string{"Stopping"}}
	toggle := f.toggle(Stop)
	toggle.Interval = 50 * time.Millisecond
	toggle.Timeout = 10 * time.Millisecond
	toggle.Initial = func(context.Context) (string, error) { return "", errors.New("nope") }

	_, err := Run(context.Background(), log.NewNopLogger(), toggle)
	var e *azerr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, azerr.Timeout, e.Type)
	assert.Equal(t, "", e.State)
}

func TestCancelledWhileWaiting(t *testing.T) {
	f := &fakeResource{states: []string{"Stopping"}}
	toggle := f.toggle(Stop)
	toggle.Interval = time.Second
	toggle.Timeout = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := Run(ctx, log.NewNopLogger(), toggle)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, azerr.IsTimeout(err))
}

func TestExplicitWantOverridesActionTarget(t *testing.T) {
	f := &fakeResource{states: []string{"Building", "Success"}}
	toggle := f.toggle(Start)
	toggle.Want = "Success"
	state, err := Run(context.Background(), log.NewNopLogger(), toggle)
	require.NoError(t, err)
	assert.Equal(t, "Success", state)
}

func TestConnectionFailureThenPollsAfterRetry(t *testing.T) {
	f := &fakeResource{
		states: []string{"Stopped"},
		sendFn: func(n int32) error {
			if n == 1 {
				return azerr.ConnectionFailed(errors.New("connection reset by peer"))
			}
			return nil
		},
	}
	state, err := Run(context.Background(), log.NewNopLogger(), f.toggle(Stop))
	require.NoError(t, err)
	assert.Equal(t, Stopped, state)
	assert.EqualValues(t, 2, f.sends)
}
