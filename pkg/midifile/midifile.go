// Package midifile reads and writes clips as Standard MIDI Files.
package midifile

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/timing"
)

// DefaultPPQ is the file resolution used when Options.PPQ is zero.
const DefaultPPQ = 480

var ErrNilClip = errors.New("nil clip")

// Options controls the header of an exported file. When Tempo is set its
// tempo and meter changes are written and TempoBPM, Numerator and
// Denominator are ignored.
type Options struct {
	PPQ         uint16
	Channel     uint8
	TempoBPM    float64
	Numerator   uint8
	Denominator uint8
	Tempo       *timing.TempoMap
}

// DefaultOptions returns 480 PPQ, channel 1, 120 BPM in 4/4.
func DefaultOptions() Options {
	return Options{PPQ: DefaultPPQ, TempoBPM: 120, Numerator: 4, Denominator: 4}
}

func (o Options) withDefaults() Options {
	if o.PPQ == 0 {
		o.PPQ = DefaultPPQ
	}
	if o.TempoBPM <= 0 {
		o.TempoBPM = 120
	}
	if o.Numerator == 0 {
		o.Numerator = 4
	}
	if o.Denominator == 0 {
		o.Denominator = 4
	}
	o.Channel &= 0x0f
	if o.Tempo == nil {
		o.Tempo = timing.NewTempoMap(o.TempoBPM, int(o.Numerator), int(o.Denominator))
	}
	return o
}

// Header is the tempo and meter found in an imported file.
type Header struct {
	PPQ         uint16
	TempoBPM    float64
	Numerator   uint8
	Denominator uint8
	Notes       int
	CCEvents    int
}

// IsMIDIFile reports whether filename has a .mid or .midi extension.
func IsMIDIFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return true
	}
	return false
}

// event kinds sort meta events first, then note-offs before controllers
// before note-ons at one tick, so a repeated pitch is released before it
// sounds again.
const (
	kindMeta = iota
	kindNoteOff
	kindCC
	kindNoteOn
)

// event is a message at a file tick.
type event struct {
	at   int64
	kind int
	msg  smf.Message
}

// Export writes clip as a single-track file.
func Export(w io.Writer, clip *model.Clip, opts Options) error {
	if clip == nil {
		return ErrNilClip
	}
	opts = opts.withDefaults()

	var events []event
	for _, mc := range opts.Tempo.Meters() {
		events = append(events, event{
			at:   toFile(mc.Tick, opts.PPQ),
			kind: kindMeta,
			msg:  smf.MetaMeter(uint8(mc.Numerator), uint8(mc.Denominator)),
		})
	}
	for _, tc := range opts.Tempo.Tempos() {
		events = append(events, event{at: toFile(tc.Tick, opts.PPQ), kind: kindMeta, msg: smf.MetaTempo(tc.BPM)})
	}

	name := clip.Name()
	clip.Read(func(notes []model.Note, ccs []model.CCEvent) {
		for _, n := range notes {
			key := uint8(n.Pitch)
			on := toFile(n.StartTick, opts.PPQ)
			// a note never collapses to zero length in the file
			off := max(toFile(n.EndTick, opts.PPQ), on+1)
			events = append(events,
				event{at: on, kind: kindNoteOn, msg: smf.Message(midi.NoteOn(opts.Channel, key, uint8(n.Velocity)))},
				event{at: off, kind: kindNoteOff, msg: smf.Message(midi.NoteOff(opts.Channel, key))},
			)
		}
		for _, ev := range ccs {
			events = append(events, event{
				at:   toFile(ev.Tick, opts.PPQ),
				kind: kindCC,
				msg:  smf.Message(midi.ControlChange(opts.Channel, uint8(ev.CC), uint8(ev.Value))),
			})
		}
	})
	slices.SortStableFunc(events, func(a, b event) int {
		if c := cmp.Compare(a.at, b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.PPQ)

	var track smf.Track
	if name != "" {
		track.Add(0, smf.MetaTrackSequenceName(name))
	}

	var last int64
	for _, ev := range events {
		track.Add(uint32(ev.at-last), ev.msg)
		last = ev.at
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}

// ExportFile writes clip to filename.
func ExportFile(filename string, clip *model.Clip, opts Options) error {
	var buf bytes.Buffer
	if err := Export(&buf, clip, opts); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return nil
}

type pending struct {
	tick int64
	vel  uint8
}

// Import reads every track of a file and adds its notes and controller events
// to clip. Ticks are rescaled to timing.PPQ. A note-on without a matching
// note-off ends at the last event of the file.
func Import(r io.Reader, clip *model.Clip) (Header, error) {
	h := Header{TempoBPM: 120, Numerator: 4, Denominator: 4}
	if clip == nil {
		return h, ErrNilClip
	}
	s, err := smf.ReadFrom(r)
	if err != nil {
		return h, fmt.Errorf("failed to parse MIDI: %w", err)
	}
	h.PPQ = timing.PPQ
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() > 0 {
		h.PPQ = mt.Resolution()
	}

	var (
		notes   []model.Note
		ccs     []model.CCEvent
		lastAbs int64
	)
	tempoSeen, meterSeen := false, false
	for _, track := range s.Tracks {
		open := make(map[[2]uint8][]pending)
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			tick := fromFile(abs, h.PPQ)
			lastAbs = max(lastAbs, tick)

			var (
				ch, key, vel uint8
				bpm          float64
				num, denom   uint8
			)
			msg := ev.Message
			switch {
			case msg.GetMetaTempo(&bpm):
				if !tempoSeen && bpm > 0 {
					h.TempoBPM = bpm
					tempoSeen = true
				}
			case msg.GetMetaMeter(&num, &denom):
				if !meterSeen && num > 0 && denom > 0 {
					h.Numerator, h.Denominator = num, denom
					meterSeen = true
				}
			case msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
				k := [2]uint8{ch, key}
				open[k] = append(open[k], pending{tick: tick, vel: vel})
			case msg.GetNoteOff(&ch, &key, &vel), msg.GetNoteOn(&ch, &key, &vel):
				k := [2]uint8{ch, key}
				if q := open[k]; len(q) > 0 {
					notes = append(notes, model.NewNote(int(key), q[0].tick, tick, int(q[0].vel)))
					open[k] = q[1:]
				}
			case msg.GetControlChange(&ch, &key, &vel):
				ccs = append(ccs, model.NewCCEvent(int(key), tick, int(vel)))
			}
		}
		for k, q := range open {
			for _, p := range q {
				notes = append(notes, model.NewNote(int(k[1]), p.tick, lastAbs, int(p.vel)))
			}
		}
	}

	slices.SortFunc(notes, func(a, b model.Note) int {
		if c := cmp.Compare(a.StartTick, b.StartTick); c != 0 {
			return c
		}
		return cmp.Compare(a.Pitch, b.Pitch)
	})
	for _, n := range notes {
		clip.AddNoteValue(n)
	}
	for _, ev := range ccs {
		clip.AddCCEvent(ev)
	}
	h.Notes = len(notes)
	h.CCEvents = len(ccs)
	return h, nil
}

// ImportFile reads filename into clip.
func ImportFile(filename string, clip *model.Clip) (Header, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open MIDI file: %w", err)
	}
	defer f.Close()
	return Import(f, clip)
}

func toFile(tick int64, ppq uint16) int64 {
	return (max(tick, 0)*int64(ppq) + timing.PPQ/2) / timing.PPQ
}

func fromFile(tick int64, ppq uint16) int64 {
	return (tick*timing.PPQ + int64(ppq)/2) / int64(ppq)
}
