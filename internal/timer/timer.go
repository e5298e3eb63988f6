// Package timer implements the room's pomodoro countdown.
package timer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultPreset = 25
	MinPreset     = 1
	MaxPreset     = 120

	saveTimeout = 10 * time.Second
)

var ErrInvalidPreset = fmt.Errorf("preset must be between %d and %d minutes", MinPreset, MaxPreset)

// Saver records a completed focus session.
type Saver interface {
	SaveSession(ctx context.Context, minutes int) error
}

// Ticker delivers one value per second while the timer runs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type clockTicker struct{ *time.Ticker }

func (t clockTicker) Chan() <-chan time.Time { return t.C }

func newClockTicker(d time.Duration) Ticker { return clockTicker{time.NewTicker(d)} }

// State is a point-in-time copy of the countdown.
type State struct {
	Minutes int
	Seconds int
	Running bool
	Preset  int
}

// String formats the remaining time as MM:SS.
func (s State) String() string {
	return fmt.Sprintf("%02d:%02d", s.Minutes, s.Seconds)
}

// Remaining is the time left on the countdown.
func (s State) Remaining() time.Duration {
	return time.Duration(s.Minutes)*time.Minute + time.Duration(s.Seconds)*time.Second
}

// Elapsed is the completed fraction of the preset, from 0 to 1.
func (s State) Elapsed() float64 {
	total := time.Duration(s.Preset) * time.Minute
	if total <= 0 {
		return 0
	}
	return 1 - float64(s.Remaining())/float64(total)
}

type Options struct {
	// Preset is the starting length in minutes; DefaultPreset when zero.
	Preset int
	// NewTicker replaces the wall-clock ticker.
	NewTicker func(d time.Duration) Ticker
	// OnTick is called after every change of the countdown.
	OnTick func(State)
	// OnComplete is called once per finished session with its length.
	OnComplete func(minutes int)
	Logger     *slog.Logger
}

// Timer is a single countdown. It is safe for concurrent use.
type Timer struct {
	saver      Saver
	newTicker  func(time.Duration) Ticker
	onTick     func(State)
	onComplete func(int)
	log        *slog.Logger

	mu      sync.Mutex
	minutes int
	seconds int
	preset  int
	running bool
	run     uint64
	stop    chan struct{}
}

// New creates a stopped timer set to the preset. saver may be nil.
func New(saver Saver, opts Options) (*Timer, error) {
	preset := opts.Preset
	if preset == 0 {
		preset = DefaultPreset
	}
	if err := validate(preset); err != nil {
		return nil, err
	}

	t := &Timer{
		saver:      saver,
		newTicker:  opts.NewTicker,
		onTick:     opts.OnTick,
		onComplete: opts.OnComplete,
		log:        opts.Logger,
		minutes:    preset,
		preset:     preset,
	}
	if t.newTicker == nil {
		t.newTicker = newClockTicker
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	t.log = t.log.With("component", "timer")
	return t, nil
}

func validate(minutes int) error {
	if minutes < MinPreset || minutes > MaxPreset {
		return fmt.Errorf("%w, got %d", ErrInvalidPreset, minutes)
	}
	return nil
}

// State returns the current countdown.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state()
}

func (t *Timer) state() State {
	return State{Minutes: t.minutes, Seconds: t.seconds, Running: t.running, Preset: t.preset}
}

// Start begins counting down. Starting a running timer does nothing.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.run++
	run := t.run
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.newTicker(time.Second)
	s := t.state()
	t.mu.Unlock()

	t.log.Debug("timer started", "remaining", s.String())
	t.notify(s)
	go t.loop(run, ticker, stop)
}

func (t *Timer) loop(run uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !t.tick(run) {
				return
			}
		}
	}
}

// tick advances the countdown by one second. It reports false once the
// run it belongs to is over.
func (t *Timer) tick(run uint64) bool {
	t.mu.Lock()
	if !t.running || t.run != run {
		t.mu.Unlock()
		return false
	}

	if t.seconds == 0 {
		t.minutes--
		t.seconds = 59
	} else {
		t.seconds--
	}

	if t.minutes > 0 || t.seconds > 0 {
		s := t.state()
		t.mu.Unlock()
		t.notify(s)
		return true
	}

	minutes := t.preset
	t.halt()
	t.minutes, t.seconds = t.preset, 0
	s := t.state()
	t.mu.Unlock()

	t.notify(s)
	t.complete(minutes)
	return false
}

func (t *Timer) complete(minutes int) {
	t.log.Info("focus session completed", "minutes", minutes)
	if t.onComplete != nil {
		t.onComplete(minutes)
	}
	if t.saver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := t.saver.SaveSession(ctx, minutes); err != nil {
		t.log.Error("failed to save session", "minutes", minutes, "error", err)
	}
}

// Pause stops the countdown, keeping the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	t.halt()
	s := t.state()
	t.mu.Unlock()
	t.notify(s)
}

// Reset pauses and restores the preset length.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.halt()
	t.minutes, t.seconds = t.preset, 0
	s := t.state()
	t.mu.Unlock()
	t.notify(s)
}

// SetPreset pauses and sets a new session length.
func (t *Timer) SetPreset(minutes int) error {
	if err := validate(minutes); err != nil {
		return err
	}

	t.mu.Lock()
	t.halt()
	t.preset = minutes
	t.minutes, t.seconds = minutes, 0
	s := t.state()
	t.mu.Unlock()
	t.notify(s)
	return nil
}

// halt stops the running loop. Callers hold mu.
func (t *Timer) halt() {
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
	t.stop = nil
}

func (t *Timer) notify(s State) {
	if t.onTick != nil {
		t.onTick(s)
	}
}
