package edit

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/quantize"
	"github.com/james-see/pianodaw/pkg/theory"
)

// transform is the shared body of commands that change existing notes in
// place. The first Execute records every touched note before and after;
// Undo writes the before values back and redo writes the after values, so
// redo reproduces the first run exactly even for random edits.
type transform struct {
	clip   *model.Clip
	ids    []model.NoteID
	withCC bool
	apply  func(tx *model.ClipTx, notes []*model.Note)

	done     bool
	before   []model.Note
	after    []model.Note
	ccBefore []model.CCEvent
	ccAfter  []model.CCEvent
}

func (t *transform) Execute() {
	t.clip.Edit(func(tx *model.ClipTx) {
		if t.done {
			restore(tx, t.after)
			if t.withCC {
				tx.SetCCEvents(t.ccAfter)
			}
			return
		}
		notes := find(tx, t.ids)
		t.before = values(notes)
		if t.withCC {
			t.ccBefore = slices.Clone(tx.CCEvents())
		}
		if len(notes) > 0 {
			t.apply(tx, notes)
		}
		t.after = values(notes)
		if t.withCC {
			t.ccAfter = slices.Clone(tx.CCEvents())
		}
		t.done = true
	})
}

func (t *transform) Undo() {
	t.clip.Edit(func(tx *model.ClipTx) {
		restore(tx, t.before)
		if t.withCC {
			tx.SetCCEvents(t.ccBefore)
		}
	})
}

func values(notes []*model.Note) []model.Note {
	out := make([]model.Note, len(notes))
	for i, n := range notes {
		out[i] = *n
	}
	return out
}

func restore(tx *model.ClipTx, notes []model.Note) {
	for _, n := range notes {
		if p := tx.Find(n.ID); p != nil {
			*p = n
		}
	}
}

// byPitchThenStart returns notes sorted by pitch, then start tick.
func byPitchThenStart(notes []*model.Note) []*model.Note {
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b *model.Note) int {
		if a.Pitch != b.Pitch {
			return a.Pitch - b.Pitch
		}
		switch {
		case a.StartTick < b.StartTick:
			return -1
		case a.StartTick > b.StartTick:
			return 1
		}
		return 0
	})
	return sorted
}

// nextSamePitch returns the first later note of the same pitch in a slice
// sorted by byPitchThenStart.
func nextSamePitch(sorted []*model.Note, i int) *model.Note {
	for j := i + 1; j < len(sorted); j++ {
		if sorted[j].Pitch != sorted[i].Pitch {
			return nil
		}
		if sorted[j].StartTick > sorted[i].StartTick {
			return sorted[j]
		}
	}
	return nil
}

// MoveNotes shifts notes in time and pitch. Starts stop at zero and
// pitches at the MIDI range.
type MoveNotes struct {
	transform
}

func NewMoveNotes(clip *model.Clip, ids []model.NoteID, deltaTicks int64, deltaPitch int) *MoveNotes {
	return &MoveNotes{transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			n.Move(deltaTicks)
			n.Pitch = model.ClampPitch(n.Pitch + deltaPitch)
		}
	}}}
}

func (c *MoveNotes) Description() string { return "Move Notes" }

// ResizeNote sets a note's start and end.
type ResizeNote struct {
	transform
}

func NewResizeNote(clip *model.Clip, id model.NoteID, start, end int64) *ResizeNote {
	return &ResizeNote{transform{clip: clip, ids: []model.NoteID{id}, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			n.StartTick = max(start, 0)
			n.Resize(end)
		}
	}}}
}

func (c *ResizeNote) Description() string { return "Resize Note" }

// Quantize snaps notes to a grid. With SmartPedal set the sustain pedal
// events are recorded and restored too.
type Quantize struct {
	transform
	moved []model.NoteID
}

func NewQuantize(clip *model.Clip, ids []model.NoteID, p quantize.Params) *Quantize {
	c := &Quantize{}
	c.transform = transform{clip: clip, ids: ids, withCC: p.SmartPedal, apply: func(tx *model.ClipTx, notes []*model.Note) {
		c.moved = quantize.Apply(tx, ids, p)
	}}
	return c
}

func (c *Quantize) Description() string { return "Quantize" }

// Moved returns the ids whose start changed on the first Execute.
func (c *Quantize) Moved() []model.NoteID { return c.moved }

// ScaleLength changes note lengths by percent: 100 doubles, -50 halves.
// Lengths never drop below model.MinResizeLength.
type ScaleLength struct {
	transform
	percent float64
}

func NewScaleLength(clip *model.Clip, ids []model.NoteID, percent float64) *ScaleLength {
	return &ScaleLength{percent: percent, transform: transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		factor := 1 + percent/100
		for _, n := range notes {
			length := int64(float64(n.Duration()) * factor)
			n.EndTick = n.StartTick + max(length, model.MinResizeLength)
		}
	}}}
}

func (c *ScaleLength) Description() string {
	return fmt.Sprintf("Scale Length %+.0f%%", c.percent)
}

// Legato extends each note to the start of the next note of the same pitch.
type Legato struct {
	transform
}

func NewLegato(clip *model.Clip, ids []model.NoteID) *Legato {
	return &Legato{transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		sorted := byPitchThenStart(notes)
		for i, n := range sorted {
			if next := nextSamePitch(sorted, i); next != nil {
				n.EndTick = next.StartTick
			}
		}
	}}}
}

func (c *Legato) Description() string { return "Legato" }

// SetOverlap sets the end of each note relative to the next note of the
// same pitch: positive ticks overlap, negative ticks leave a gap. Notes that
// would become shorter than model.MinResizeLength are left alone.
type SetOverlap struct {
	transform
}

func NewSetOverlap(clip *model.Clip, ids []model.NoteID, ticks int64) *SetOverlap {
	return &SetOverlap{transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		sorted := byPitchThenStart(notes)
		for i, n := range sorted {
			if next := nextSamePitch(sorted, i); next != nil {
				if end := next.StartTick + ticks; end > n.StartTick+model.MinResizeLength {
					n.EndTick = end
				}
			}
		}
	}}}
}

func (c *SetOverlap) Description() string { return "Set Overlap" }

// Transpose shifts pitches by semitones, clamped to the MIDI range.
type Transpose struct {
	transform
	semitones int
}

func NewTranspose(clip *model.Clip, ids []model.NoteID, semitones int) *Transpose {
	return &Transpose{semitones: semitones, transform: transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			n.Pitch = model.ClampPitch(n.Pitch + semitones)
		}
	}}}
}

func (c *Transpose) Description() string {
	return fmt.Sprintf("Transpose %+d", c.semitones)
}

// SnapToScale moves each pitch to the nearest one in a scale, the lower on
// a tie.
type SnapToScale struct {
	transform
	scale theory.ScaleType
}

func NewSnapToScale(clip *model.Clip, ids []model.NoteID, root int, scale theory.ScaleType) *SnapToScale {
	return &SnapToScale{scale: scale, transform: transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			n.Pitch = theory.SnapToScale(n.Pitch, root, scale)
		}
	}}}
}

func (c *SnapToScale) Description() string { return "Snap to " + c.scale.String() }

// SetVelocity gives every note the same velocity.
type SetVelocity struct {
	transform
}

func NewSetVelocity(clip *model.Clip, ids []model.NoteID, velocity int) *SetVelocity {
	v := model.ClampVelocity(velocity)
	return &SetVelocity{transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			n.Velocity = v
		}
	}}}
}

func (c *SetVelocity) Description() string { return "Set Velocity" }

// FixedLength gives every note the same length.
type FixedLength struct {
	transform
}

func NewFixedLength(clip *model.Clip, ids []model.NoteID, length int64) *FixedLength {
	length = max(length, model.MinResizeLength)
	return &FixedLength{transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			n.EndTick = n.StartTick + length
		}
	}}}
}

func (c *FixedLength) Description() string { return "Fixed Length" }

// Humanize nudges timing and velocity by random amounts up to the given
// limits. The random values are drawn once; redo replays them.
type Humanize struct {
	transform
}

func NewHumanize(clip *model.Clip, ids []model.NoteID, timingTicks int64, velocity int, seed int64) *Humanize {
	rng := rand.New(rand.NewSource(seed))
	return &Humanize{transform{clip: clip, ids: ids, apply: func(_ *model.ClipTx, notes []*model.Note) {
		for _, n := range notes {
			if timingTicks > 0 {
				off := rng.Int63n(timingTicks*2+1) - timingTicks
				start := max(n.StartTick+off, 0)
				n.EndTick = max(start+model.MinResizeLength, n.EndTick+off)
				n.StartTick = start
			}
			if velocity > 0 {
				off := rng.Intn(velocity*2+1) - velocity
				n.Velocity = model.ClampVelocity(n.Velocity + off)
			}
		}
	}}}
}

func (c *Humanize) Description() string { return "Humanize" }
