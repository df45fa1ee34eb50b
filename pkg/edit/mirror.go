package edit

import (
	"slices"

	"github.com/james-see/pianodaw/pkg/model"
)

// The commands in this file are involutions over their selection: applying
// one twice restores every note exactly, so Undo simply runs Execute again.

// MirrorVertical flips pitches around the centre of the selection's pitch
// range. Undo calls Execute.
type MirrorVertical struct {
	clip *model.Clip
	ids  []model.NoteID
}

func NewMirrorVertical(clip *model.Clip, ids []model.NoteID) *MirrorVertical {
	return &MirrorVertical{clip: clip, ids: ids}
}

func (c *MirrorVertical) Execute() {
	c.clip.Edit(func(tx *model.ClipTx) {
		notes := find(tx, c.ids)
		if len(notes) == 0 {
			return
		}
		lo, hi := notes[0].Pitch, notes[0].Pitch
		for _, n := range notes {
			lo, hi = min(lo, n.Pitch), max(hi, n.Pitch)
		}
		for _, n := range notes {
			n.Pitch = lo + hi - n.Pitch
		}
	})
}

func (c *MirrorVertical) Undo() { c.Execute() }

func (c *MirrorVertical) Description() string { return "Mirror Vertical" }

// MirrorHorizontal flips notes in time across the selection's span, so the
// first note to start becomes the last to end. Undo calls Execute.
type MirrorHorizontal struct {
	clip *model.Clip
	ids  []model.NoteID
}

func NewMirrorHorizontal(clip *model.Clip, ids []model.NoteID) *MirrorHorizontal {
	return &MirrorHorizontal{clip: clip, ids: ids}
}

func (c *MirrorHorizontal) Execute() {
	c.clip.Edit(func(tx *model.ClipTx) {
		notes := find(tx, c.ids)
		if len(notes) == 0 {
			return
		}
		lo, hi := notes[0].StartTick, notes[0].EndTick
		for _, n := range notes {
			lo, hi = min(lo, n.StartTick), max(hi, n.EndTick)
		}
		for _, n := range notes {
			n.StartTick, n.EndTick = lo+hi-n.EndTick, lo+hi-n.StartTick
		}
	})
}

func (c *MirrorHorizontal) Undo() { c.Execute() }

func (c *MirrorHorizontal) Description() string { return "Mirror Horizontal" }

// Reverse reverses the order of note starts within the selection while
// keeping every note's length. Undo calls Execute.
type Reverse struct {
	clip *model.Clip
	ids  []model.NoteID
}

func NewReverse(clip *model.Clip, ids []model.NoteID) *Reverse {
	return &Reverse{clip: clip, ids: ids}
}

func (c *Reverse) Execute() {
	c.clip.Edit(func(tx *model.ClipTx) {
		notes := find(tx, c.ids)
		if len(notes) == 0 {
			return
		}
		first, last := notes[0].StartTick, notes[0].StartTick
		for _, n := range notes {
			first, last = min(first, n.StartTick), max(last, n.StartTick)
		}
		for _, n := range notes {
			d := n.Duration()
			n.StartTick = first + last - n.StartTick
			n.EndTick = n.StartTick + d
		}
	})
}

func (c *Reverse) Undo() { c.Execute() }

func (c *Reverse) Description() string { return "Reverse" }

// find resolves ids inside an edit, skipping unknown and repeated ids.
func find(tx *model.ClipTx, ids []model.NoteID) []*model.Note {
	notes := make([]*model.Note, 0, len(ids))
	for _, id := range ids {
		if n := tx.Find(id); n != nil && !slices.Contains(notes, n) {
			notes = append(notes, n)
		}
	}
	return notes
}
