package timer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	c chan time.Time

	mu      sync.Mutex
	period  time.Duration
	stopped int
}

func (m *manualTicker) Chan() <-chan time.Time { return m.c }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
}

func (m *manualTicker) fire(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case m.c <- time.Now():
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d not consumed", i+1)
		}
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saves []int
	err   error
}

func (r *recordingSaver) SaveSession(_ context.Context, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, minutes)
	return r.err
}

func (r *recordingSaver) recorded() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.saves...)
}

func newTestTimer(t *testing.T, saver Saver, opts Options) (*Timer, *manualTicker) {
	t.Helper()
	ticker := &manualTicker{c: make(chan time.Time)}
	opts.NewTicker = func(d time.Duration) Ticker {
		ticker.mu.Lock()
		ticker.period = d
		ticker.mu.Unlock()
		return ticker
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	tm, err := New(saver, opts)
	require.NoError(t, err)
	return tm, ticker
}

func TestPresetCountdownCompletes(t *testing.T) {
	saver := &recordingSaver{}
	completed := make(chan int, 4)
	tm, ticker := newTestTimer(t, saver, Options{
		OnComplete: func(minutes int) { completed <- minutes },
	})

	require.NoError(t, tm.SetPreset(5))
	assert.Equal(t, "05:00", tm.State().String())

	tm.Start()
	ticker.fire(t, 299)
	assert.Eventually(t, func() bool { return tm.State().String() == "00:01" }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, completed)

	ticker.fire(t, 1)
	select {
	case minutes := <-completed:
		assert.Equal(t, 5, minutes)
	case <-time.After(2 * time.Second):
		t.Fatal("completion not reported")
	}

	assert.Eventually(t, func() bool { return len(saver.recorded()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{5}, saver.recorded())
	assert.Empty(t, completed)

	s := tm.State()
	assert.False(t, s.Running)
	assert.Equal(t, "05:00", s.String())
	assert.Equal(t, 5, s.Preset)
	assert.Equal(t, time.Second, ticker.period)
}

func TestPauseKeepsRemaining(t *testing.T) {
	ticks := make(chan State, 64)
	tm, ticker := newTestTimer(t, nil, Options{
		OnTick: func(s State) { ticks <- s },
	})

	tm.Start()
	<-ticks // start
	ticker.fire(t, 10)
	for i := 0; i < 10; i++ {
		<-ticks
	}
	tm.Pause()

	s := tm.State()
	assert.False(t, s.Running)
	assert.Equal(t, "24:50", s.String())

	tm.Start()
	ticker.fire(t, 1)
	assert.Eventually(t, func() bool { return tm.State().String() == "24:49" }, 2*time.Second, 5*time.Millisecond)
	tm.Pause()
}

func TestResetRestoresPreset(t *testing.T) {
	tm, ticker := newTestTimer(t, nil, Options{Preset: 50})

	tm.Start()
	ticker.fire(t, 90)
	tm.Reset()

	s := tm.State()
	assert.False(t, s.Running)
	assert.Equal(t, "50:00", s.String())
}

func TestSetPresetBounds(t *testing.T) {
	tm, _ := newTestTimer(t, nil, Options{})

	for _, bad := range []int{0, -5, 121} {
		err := tm.SetPreset(bad)
		assert.True(t, errors.Is(err, ErrInvalidPreset), "preset %d", bad)
	}
	assert.Equal(t, "25:00", tm.State().String())

	require.NoError(t, tm.SetPreset(120))
	assert.Equal(t, 120, tm.State().Preset)

	_, err := New(nil, Options{Preset: 500})
	assert.ErrorIs(t, err, ErrInvalidPreset)
}

func TestSetPresetPausesRunningTimer(t *testing.T) {
	tm, ticker := newTestTimer(t, nil, Options{})

	tm.Start()
	ticker.fire(t, 3)
	require.NoError(t, tm.SetPreset(15))

	s := tm.State()
	assert.False(t, s.Running)
	assert.Equal(t, "15:00", s.String())
}

func TestSaveFailureIsOnlyLogged(t *testing.T) {
	saver := &recordingSaver{err: errors.New("boom")}
	tm, ticker := newTestTimer(t, saver, Options{Preset: 1})

	tm.Start()
	ticker.fire(t, 60)

	assert.Eventually(t, func() bool { return len(saver.recorded()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "01:00", tm.State().String())
}

func TestStateElapsed(t *testing.T) {
	s := State{Minutes: 12, Seconds: 30, Preset: 25}
	assert.InDelta(t, 0.5, s.Elapsed(), 0.0001)
	assert.Equal(t, 12*time.Minute+30*time.Second, s.Remaining())
	assert.Zero(t, State{}.Elapsed())
}
