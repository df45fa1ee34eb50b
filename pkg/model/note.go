// Package model holds the editable musical data: notes and controller events
// grouped into clips, clips placed on tracks, and the project that owns both.
//
// Every Clip, Track and Project guards its own state with a sync.RWMutex.
// Code that needs more than one lock acquires them in Project, Track, Clip
// order.
package model

import "github.com/james-see/pianodaw/pkg/timing"

// NoteID identifies a note within its clip. IDs are never reused by a clip.
type NoteID int64

const (
	// MinNoteLength is the length given to notes constructed with an end at or
	// before their start.
	MinNoteLength = timing.PPQ / 4
	// MinResizeLength is the shortest length Resize allows.
	MinResizeLength = timing.PPQ / 16
)

// Note is a single MIDI note.
type Note struct {
	ID        NoteID `json:"id" yaml:"id"`
	Pitch     int    `json:"pitch" yaml:"pitch"`
	StartTick int64  `json:"startTick" yaml:"startTick"`
	EndTick   int64  `json:"endTick" yaml:"endTick"`
	Velocity  int    `json:"velocity" yaml:"velocity"`
}

// NewNote returns a note with pitch clamped to 0..127, velocity to 1..127 and
// start to zero or later. An end at or before start becomes start+MinNoteLength.
func NewNote(pitch int, start, end int64, velocity int) Note {
	n := Note{
		Pitch:     ClampPitch(pitch),
		StartTick: max(start, 0),
		EndTick:   end,
		Velocity:  ClampVelocity(velocity),
	}
	if n.EndTick <= n.StartTick {
		n.EndTick = n.StartTick + MinNoteLength
	}
	return n
}

// ClampPitch limits p to the MIDI note range.
func ClampPitch(p int) int {
	return min(max(p, 0), 127)
}

// ClampVelocity limits v to 1..127. Zero is reserved for note-off.
func ClampVelocity(v int) int {
	return min(max(v, 1), 127)
}

// Duration returns the note length in ticks.
func (n Note) Duration() int64 {
	return n.EndTick - n.StartTick
}

// ContainsTick reports whether tick falls in [StartTick, EndTick).
func (n Note) ContainsTick(tick int64) bool {
	return tick >= n.StartTick && tick < n.EndTick
}

// Overlaps reports whether the note intersects [start, end).
func (n Note) Overlaps(start, end int64) bool {
	return !(n.EndTick <= start || n.StartTick >= end)
}

// Move shifts the note by delta ticks, never past tick zero. The length is kept.
func (n *Note) Move(delta int64) {
	d := n.Duration()
	n.StartTick = max(n.StartTick+delta, 0)
	n.EndTick = n.StartTick + d
}

// Resize sets the end tick, keeping at least MinResizeLength.
func (n *Note) Resize(end int64) {
	n.EndTick = max(end, n.StartTick+MinResizeLength)
}

// Less orders notes by start tick, then pitch.
func (n Note) Less(o Note) bool {
	if n.StartTick != o.StartTick {
		return n.StartTick < o.StartTick
	}
	return n.Pitch < o.Pitch
}
