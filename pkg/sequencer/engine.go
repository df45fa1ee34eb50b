// Package sequencer turns the arrangement into MIDI messages block by block
// and records incoming MIDI into a clip.
package sequencer

import (
	"cmp"
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/transport"
)

// Channel mode controllers sent when playback stops.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// DefaultBlockInterval is the block period used by Run when none is given.
const DefaultBlockInterval = 5 * time.Millisecond

type timed struct {
	tick int64
	kind int
	msg  midi.Message
}

const (
	kindNoteOff = iota
	kindCC
	kindNoteOn
)

// Engine reads the project once per block and emits the notes and controller
// events that fall between the previous block and the transport position.
// ProcessBlock must be called from a single goroutine.
type Engine struct {
	project   *model.Project
	transport *transport.Transport
	recorder  *Recorder
	logger    *log.Logger

	lastTick int64
	active   bool
	pending  []timed
	out      []midi.Message

	inMu  sync.Mutex
	inbox []midi.Message
	spare []midi.Message
}

// New returns an engine over p driven by tr. A nil logger discards output.
func New(p *model.Project, tr *transport.Transport, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		project:   p,
		transport: tr,
		recorder:  NewRecorder(logger),
		logger:    logger,
		pending:   make([]timed, 0, 256),
		out:       make([]midi.Message, 0, 256),
	}
}

// Recorder returns the recorder fed by ProcessBlock.
func (e *Engine) Recorder() *Recorder { return e.recorder }

// Input queues msg for the recorder. It is safe to call from a MIDI listener
// goroutine; Run passes queued messages to the next block.
func (e *Engine) Input(msg midi.Message) {
	e.inMu.Lock()
	e.inbox = append(e.inbox, msg)
	e.inMu.Unlock()
}

// drain takes the queued input. The returned slice is valid until the next
// call.
func (e *Engine) drain() []midi.Message {
	e.inMu.Lock()
	in := e.inbox
	e.inbox = e.spare[:0]
	e.inMu.Unlock()
	e.spare = in
	return in
}

// ProcessBlock hands in to the recorder and returns the messages due in this
// block, ordered by tick. The returned slice is reused by the next call.
func (e *Engine) ProcessBlock(in []midi.Message) []midi.Message {
	e.out = e.out[:0]
	e.pending = e.pending[:0]
	cur := e.transport.Position()

	if !e.transport.Playing() {
		if e.active {
			e.out = appendPanic(e.out)
			e.active = false
			e.logger.Debug("sequencer stopped", "tick", cur)
		}
		return e.out
	}
	if len(in) > 0 {
		e.recorder.Process(in, cur)
	}
	if !e.active {
		e.active = true
		e.lastTick = cur
		return e.out
	}

	switch {
	case cur > e.lastTick:
		e.collect(e.lastTick, cur)
	case cur < e.lastTick:
		lr := e.transport.LoopRange()
		wrapped := e.transport.Looping() && e.lastTick < lr.End && cur >= lr.Start
		if wrapped {
			e.collect(e.lastTick, lr.End)
		}
		e.flush()
		e.out = appendAllNotesOff(e.out)
		if wrapped {
			e.collect(lr.Start, cur)
		}
	}
	e.flush()
	e.lastTick = cur
	return e.out
}

// flush sorts the pending events into out.
func (e *Engine) flush() {
	slices.SortStableFunc(e.pending, func(a, b timed) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})
	for _, ev := range e.pending {
		e.out = append(e.out, ev.msg)
	}
	e.pending = e.pending[:0]
}

// collect queues every event in [from, to). Track i plays on channel i%16.
func (e *Engine) collect(from, to int64) {
	e.project.ReadBlock(func(v model.BlockView) {
		solo := false
		for _, tr := range v.Tracks {
			if tr.Solo() {
				solo = true
				break
			}
		}
		for i, tr := range v.Tracks {
			ch := uint8(i % 16)
			tr.Read(func(s model.TrackState) {
				if s.Muted || (solo && !s.Solo) {
					return
				}
				for _, r := range s.Regions {
					if r.Muted || r.EndTick() <= from || r.StartTick >= to {
						continue
					}
					c := v.Clip(r.Clip)
					if c == nil {
						continue
					}
					c.Read(func(notes []model.Note, ccs []model.CCEvent) {
						e.collectRegion(r, ch, notes, ccs, from, to)
					})
				}
			})
		}
	})
}

func (e *Engine) collectRegion(r model.ClipRegion, ch uint8, notes []model.Note, ccs []model.CCEvent, from, to int64) {
	clipEnd := r.OffsetTick + r.LengthTick
	in := func(tick int64) bool { return tick >= from && tick < to }
	for _, n := range notes {
		if n.StartTick >= clipEnd {
			break
		}
		if n.StartTick < r.OffsetTick {
			continue
		}
		start := r.ToTimeline(n.StartTick)
		if start >= to {
			break
		}
		key := uint8(n.Pitch)
		if in(start) {
			e.pending = append(e.pending, timed{start, kindNoteOn, midi.NoteOn(ch, key, uint8(n.Velocity))})
		}
		if end := min(r.ToTimeline(n.EndTick), r.EndTick()); in(end) {
			e.pending = append(e.pending, timed{end, kindNoteOff, midi.NoteOff(ch, key)})
		}
	}
	for _, ev := range ccs {
		if ev.Tick >= clipEnd {
			break
		}
		if ev.Tick < r.OffsetTick {
			continue
		}
		if tick := r.ToTimeline(ev.Tick); in(tick) {
			e.pending = append(e.pending, timed{tick, kindCC, midi.ControlChange(ch, uint8(ev.CC), uint8(ev.Value))})
		}
	}
}

// Run processes a block every interval with the input queued since the last
// one and passes each output message to send. When ctx is done it sends
// all-notes-off and all-sound-off on every channel.
func (e *Engine) Run(ctx context.Context, interval time.Duration, send func(msg midi.Message) error) error {
	if interval <= 0 {
		interval = DefaultBlockInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	emit := func(msgs []midi.Message) {
		for _, m := range msgs {
			if err := send(m); err != nil {
				e.logger.Warn("midi send failed", "msg", m.String(), "err", err)
			}
		}
	}
	for {
		select {
		case <-ctx.Done():
			emit(appendPanic(nil))
			return ctx.Err()
		case <-ticker.C:
			emit(e.ProcessBlock(e.drain()))
		}
	}
}

func appendAllNotesOff(out []midi.Message) []midi.Message {
	for ch := uint8(0); ch < 16; ch++ {
		out = append(out, midi.ControlChange(ch, ccAllNotesOff, 0))
	}
	return out
}

func appendPanic(out []midi.Message) []midi.Message {
	for ch := uint8(0); ch < 16; ch++ {
		out = append(out,
			midi.ControlChange(ch, ccAllNotesOff, 0),
			midi.ControlChange(ch, ccAllSoundOff, 0),
		)
	}
	return out
}
