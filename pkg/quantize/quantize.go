// Package quantize moves note timing toward a rhythmic grid with adjustable
// strength and swing.
package quantize

import (
	"math"
	"slices"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/timing"
)

// GridMode selects how the grid is chosen.
type GridMode int

const (
	// GridFixed uses Params.GridTicks as given.
	GridFixed GridMode = iota
	// GridAuto picks the coarsest standard grid that fits the selection.
	GridAuto
)

func (m GridMode) String() string {
	if m == GridAuto {
		return "auto"
	}
	return "fixed"
}

// ChordWindow is how close note starts must be to count as one chord when
// SmartChord is set.
const ChordWindow = 30

// Params controls a quantize pass.
type Params struct {
	GridTicks int64
	// Strength is the fraction of the correction applied, 0..1.
	Strength float64
	// Swing delays off-beat grid positions; 0.5 is straight.
	Swing float64
	// RangeTicks limits correction to notes already within this distance of
	// their target. Zero corrects every note.
	RangeTicks int64
	// SmartChord moves notes starting within ChordWindow of each other as a
	// group, keeping the spread of rolled chords.
	SmartChord bool
	// SmartPedal also quantizes sustain pedal events in the selection span.
	SmartPedal bool
	GridMode   GridMode
}

// DefaultParams returns full-strength, straight 1/16 quantize.
func DefaultParams() Params {
	return Params{
		GridTicks: timing.GridSixteenth.Ticks(),
		Strength:  1,
		Swing:     0.5,
		GridMode:  GridFixed,
	}
}

// FromTrack converts a track's quantize defaults.
func FromTrack(q model.QuantizeSettings) Params {
	p := DefaultParams()
	if q.GridTicks > 0 {
		p.GridTicks = q.GridTicks
	}
	p.Strength = q.Strength
	p.Swing = q.Swing
	p.SmartChord = q.SmartChord
	return p
}

// TargetTick returns the grid position src is pulled toward, including swing.
func TargetTick(src int64, p Params) int64 {
	grid := p.GridTicks
	if grid <= 0 {
		return src
	}
	target := timing.SnapToGrid(src, grid)
	if p.Swing != 0.5 && target%(grid*2) != 0 {
		target += int64(float64(grid) * (p.Swing - 0.5) * 2)
	}
	return target
}

// Correction returns how far a note starting at start moves.
func Correction(start int64, p Params) int64 {
	diff := TargetTick(start, p) - start
	if p.RangeTicks > 0 && abs(diff) > p.RangeTicks {
		return 0
	}
	strength := min(max(p.Strength, 0), 1)
	return int64(math.Round(float64(diff) * strength))
}

// Note quantizes n in place, keeping its duration.
func Note(n *model.Note, p Params) {
	shift(n, Correction(n.StartTick, p))
}

func shift(n *model.Note, move int64) {
	d := n.Duration()
	n.StartTick = max(n.StartTick+move, 0)
	n.EndTick = n.StartTick + d
}

// Clip quantizes the notes in ids under the clip's lock and returns the ids
// whose start tick changed. Unknown ids are skipped.
func Clip(c *model.Clip, ids []model.NoteID, p Params) []model.NoteID {
	var moved []model.NoteID
	c.Edit(func(tx *model.ClipTx) {
		moved = Apply(tx, ids, p)
	})
	return moved
}

// Apply is Clip for callers already inside Clip.Edit.
func Apply(tx *model.ClipTx, ids []model.NoteID, p Params) []model.NoteID {
	notes := make([]*model.Note, 0, len(ids))
	for _, id := range ids {
		if n := tx.Find(id); n != nil && !slices.Contains(notes, n) {
			notes = append(notes, n)
		}
	}
	if len(notes) == 0 {
		return nil
	}
	if p.GridMode == GridAuto {
		starts := make([]int64, len(notes))
		for i, n := range notes {
			starts[i] = n.StartTick
		}
		p.GridTicks = AutoGrid(starts)
	}

	lo, hi := notes[0].StartTick, notes[0].EndTick
	for _, n := range notes {
		lo, hi = min(lo, n.StartTick), max(hi, n.EndTick)
	}

	var moved []model.NoteID
	for _, group := range groups(notes, p.SmartChord) {
		move := Correction(group[0].StartTick, p)
		for _, n := range group {
			old := n.StartTick
			shift(n, move)
			if n.StartTick != old {
				moved = append(moved, n.ID)
			}
		}
	}

	if p.SmartPedal {
		evs := tx.CCEvents()
		taken := make(map[int64]bool)
		for _, ev := range evs {
			if ev.IsSustainPedal() {
				taken[ev.Tick] = true
			}
		}
		// a pedal event stays put rather than land on another one
		for i := range evs {
			ev := &evs[i]
			if !ev.IsSustainPedal() || ev.Tick < lo || ev.Tick > hi {
				continue
			}
			to := max(ev.Tick+Correction(ev.Tick, p), 0)
			if to == ev.Tick || taken[to] {
				continue
			}
			delete(taken, ev.Tick)
			taken[to] = true
			ev.Tick = to
		}
	}
	return moved
}

// groups splits notes into quantize units. Without smart chords every note
// is its own unit.
func groups(notes []*model.Note, smartChord bool) [][]*model.Note {
	if !smartChord {
		out := make([][]*model.Note, len(notes))
		for i, n := range notes {
			out[i] = []*model.Note{n}
		}
		return out
	}
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b *model.Note) int {
		switch {
		case a.StartTick < b.StartTick:
			return -1
		case a.StartTick > b.StartTick:
			return 1
		}
		return 0
	})
	var out [][]*model.Note
	for _, n := range sorted {
		if k := len(out); k > 0 && n.StartTick-out[k-1][0].StartTick <= ChordWindow {
			out[k-1] = append(out[k-1], n)
			continue
		}
		out = append(out, []*model.Note{n})
	}
	return out
}

// AutoGrid returns the coarsest standard grid whose mean distance from the
// given starts is at most an eighth of the grid. It falls back to 1/32.
func AutoGrid(starts []int64) int64 {
	if len(starts) == 0 {
		return timing.GridSixteenth.Ticks()
	}
	for _, g := range timing.GridSizes {
		grid := g.Ticks()
		var total int64
		for _, s := range starts {
			total += abs(timing.SnapToGrid(s, grid) - s)
		}
		if total*8 <= grid*int64(len(starts)) {
			return grid
		}
	}
	return timing.GridThirtySecond.Ticks()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
