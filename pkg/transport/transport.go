// Package transport is the playback clock. Position and tempo are atomics so
// the sequencer can read them without locking; only Advance moves the
// position forward and it alone applies loop wrap-around.
package transport

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/james-see/pianodaw/pkg/timing"
)

// ErrInvalidLoopRange is returned for loops that do not end after they start.
var ErrInvalidLoopRange = errors.New("loop end must be after loop start")

// LoopRange is a half-open tick interval [Start, End).
type LoopRange struct {
	Start int64
	End   int64
}

// Len returns the loop length in ticks.
func (r LoopRange) Len() int64 { return r.End - r.Start }

// State is a snapshot of the transport.
type State struct {
	Tick      int64   `json:"tick"`
	BPM       float64 `json:"bpm"`
	Playing   bool    `json:"playing"`
	Looping   bool    `json:"looping"`
	LoopStart int64   `json:"loopStart"`
	LoopEnd   int64   `json:"loopEnd"`
}

// Transport tracks the playhead.
type Transport struct {
	tick    atomic.Int64
	bpm     atomic.Uint64
	playing atomic.Bool
	looping atomic.Bool
	loop    atomic.Pointer[LoopRange]

	advanceMu sync.Mutex
	carry     float64

	cbMu       sync.Mutex
	onStatus   func(playing bool)
	onPosition func(tick int64)

	logger *log.Logger
}

// New returns a stopped transport at tick 0, 120 BPM, with a four-bar loop.
// A nil logger discards output.
func New(logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	t := &Transport{logger: logger}
	t.bpm.Store(math.Float64bits(120))
	t.loop.Store(&LoopRange{Start: 0, End: timing.PPQ * 16})
	return t
}

// OnStatusChanged registers fn to run when playback starts or stops.
func (t *Transport) OnStatusChanged(fn func(playing bool)) {
	t.cbMu.Lock()
	t.onStatus = fn
	t.cbMu.Unlock()
}

// OnPositionChanged registers fn to run after Advance moves the playhead.
func (t *Transport) OnPositionChanged(fn func(tick int64)) {
	t.cbMu.Lock()
	t.onPosition = fn
	t.cbMu.Unlock()
}

func (t *Transport) Start() { t.SetPlaying(true) }

func (t *Transport) Stop() { t.SetPlaying(false) }

// Toggle flips between playing and stopped.
func (t *Transport) Toggle() {
	for {
		cur := t.playing.Load()
		if t.playing.CompareAndSwap(cur, !cur) {
			t.statusChanged(!cur)
			return
		}
	}
}

// SetPlaying starts or stops playback. The status callback only fires on a
// change.
func (t *Transport) SetPlaying(play bool) {
	if t.playing.CompareAndSwap(!play, play) {
		t.statusChanged(play)
	}
}

func (t *Transport) statusChanged(playing bool) {
	if playing {
		t.advanceMu.Lock()
		t.carry = 0
		t.advanceMu.Unlock()
	}
	t.logger.Debug("transport", "playing", playing, "tick", t.Position())
	t.cbMu.Lock()
	fn := t.onStatus
	t.cbMu.Unlock()
	if fn != nil {
		fn(playing)
	}
}

func (t *Transport) Playing() bool { return t.playing.Load() }

// Position returns the playhead tick.
func (t *Transport) Position() int64 { return t.tick.Load() }

// SetPosition moves the playhead; negative ticks become zero.
func (t *Transport) SetPosition(tick int64) {
	t.tick.Store(max(tick, 0))
}

// Tempo returns the tempo in BPM.
func (t *Transport) Tempo() float64 { return math.Float64frombits(t.bpm.Load()) }

// SetTempo sets the tempo, never below timing.MinTempo.
func (t *Transport) SetTempo(bpm float64) {
	if math.IsNaN(bpm) || bpm < timing.MinTempo {
		bpm = timing.MinTempo
	}
	t.bpm.Store(math.Float64bits(bpm))
}

func (t *Transport) Looping() bool { return t.looping.Load() }

func (t *Transport) SetLooping(loop bool) { t.looping.Store(loop) }

// LoopRange returns the loop interval.
func (t *Transport) LoopRange() LoopRange { return *t.loop.Load() }

// SetLoopRange sets the loop. A negative start becomes zero; an end at or
// before the start is rejected and the previous loop kept.
func (t *Transport) SetLoopRange(start, end int64) error {
	start = max(start, 0)
	if end <= start {
		return ErrInvalidLoopRange
	}
	t.loop.Store(&LoopRange{Start: start, End: end})
	return nil
}

// State returns a snapshot of every field.
func (t *Transport) State() State {
	lr := t.LoopRange()
	return State{
		Tick:      t.Position(),
		BPM:       t.Tempo(),
		Playing:   t.Playing(),
		Looping:   t.Looping(),
		LoopStart: lr.Start,
		LoopEnd:   lr.End,
	}
}

// Advance moves the playhead by the ticks that fit in elapsed wall time at
// the current tempo and returns the new position. Fractions of a tick carry
// over to the next call. Nothing moves while stopped.
func (t *Transport) Advance(elapsed time.Duration) int64 {
	if !t.Playing() || elapsed <= 0 {
		return t.Position()
	}
	t.advanceMu.Lock()
	exact := elapsed.Seconds()*timing.TicksPerSecond(t.Tempo()) + t.carry
	delta := int64(exact)
	t.carry = exact - float64(delta)
	t.advanceMu.Unlock()

	var next int64
	for {
		cur := t.tick.Load()
		next = t.wrap(cur + delta)
		if t.tick.CompareAndSwap(cur, next) {
			break
		}
	}

	t.cbMu.Lock()
	fn := t.onPosition
	t.cbMu.Unlock()
	if fn != nil && delta != 0 {
		fn(next)
	}
	return next
}

func (t *Transport) wrap(tick int64) int64 {
	if !t.Looping() {
		return tick
	}
	lr := t.LoopRange()
	if lr.Len() <= 0 || tick < lr.End {
		return tick
	}
	return lr.Start + (tick-lr.Start)%lr.Len()
}

// Run drives Advance from a ticker until ctx is done. It should be the only
// goroutine calling Advance.
func (t *Transport) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Advance(now.Sub(last))
			last = now
		}
	}
}
