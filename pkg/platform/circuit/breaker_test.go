package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	ok       bool
	wantOpen bool
	opened   bool
	closed   bool
}

func run(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, s := range steps {
		var change Change
		if s.ok {
			_, change = b.RecordSuccess()
		} else {
			_, change = b.RecordFailure()
		}
		require.Equal(t, s.wantOpen, b.IsOpen(), "step %d", i)
		assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
		assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "broker outage opens after the failure threshold",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{ok: false},
				{ok: false},
				{ok: false, wantOpen: true, opened: true},
				{ok: false, wantOpen: true},
			},
		},
		{
			name: "an accepted publish resets the failure streak",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{ok: false},
				{ok: true},
				{ok: false},
				{ok: false, wantOpen: true, opened: true},
			},
		},
		{
			name: "relay successes close it again",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{ok: false, wantOpen: true, opened: true},
				{ok: true, wantOpen: true},
				{ok: true, closed: true},
				{ok: true},
			},
		},
		{
			name: "a failure while recovering restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{ok: false, wantOpen: true, opened: true},
				{ok: true, wantOpen: true},
				{ok: false, wantOpen: true},
				{ok: true, wantOpen: true},
				{ok: true, closed: true},
			},
		},
		{
			name: "non-positive thresholds keep the defaults",
			opts: []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			steps: []step{
				{ok: false}, {ok: false}, {ok: false}, {ok: false},
				{ok: false, wantOpen: true, opened: true},
				{ok: true, wantOpen: true},
				{ok: true, closed: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run(t, New("address-publisher", tt.opts...), tt.steps)
		})
	}
}

func TestBreakerReset(t *testing.T) {
	b := New("person-publisher", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "person-publisher", b.Name())
}

func TestBreakerConcurrentRecords(t *testing.T) {
	b := New("person-publisher", WithFailureThreshold(50))

	var wg sync.WaitGroup
	opened := make(chan struct{}, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(opened)

	assert.True(t, b.IsOpen())
	assert.Len(t, opened, 1, "exactly one caller observes the transition")
}
