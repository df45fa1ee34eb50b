// Package timing converts between ticks, beats, bar:beat:tick positions and
// wall-clock seconds at a fixed resolution of 960 ticks per quarter note.
package timing

import (
	"fmt"
	"math"
)

// PPQ is the number of ticks per quarter note used throughout the editor.
const PPQ = 960

// MinTempo is the floor applied to tempo arguments so conversions never divide by zero.
const MinTempo = 1.0

// TickToBeat returns the position of tick in quarter-note beats.
func TickToBeat(tick int64) float64 {
	return float64(tick) / PPQ
}

// BeatToTick returns the tick nearest to beat.
func BeatToTick(beat float64) int64 {
	return int64(math.Round(beat * PPQ))
}

// TickToSeconds returns the wall-clock time of tick at a constant tempo.
func TickToSeconds(tick int64, bpm float64) float64 {
	return float64(tick) / ticksPerSecond(bpm)
}

// SecondsToTick returns the tick nearest to seconds at a constant tempo.
func SecondsToTick(seconds, bpm float64) int64 {
	return int64(math.Round(seconds * ticksPerSecond(bpm)))
}

// TicksPerSecond returns how many ticks elapse per second at bpm.
func TicksPerSecond(bpm float64) float64 {
	return ticksPerSecond(bpm)
}

func ticksPerSecond(bpm float64) float64 {
	if bpm < MinTempo || math.IsNaN(bpm) {
		bpm = MinTempo
	}
	return bpm / 60 * PPQ
}

// BarBeat is a musical position. Bar is 1-based, Beat is 0-based within the
// bar and Tick is the remainder within the beat.
type BarBeat struct {
	Bar  int64
	Beat int64
	Tick int64
}

// String renders the position as bar.beat.tick with a 1-based beat, the way
// transport displays show it.
func (b BarBeat) String() string {
	return fmt.Sprintf("%d.%d.%03d", b.Bar, b.Beat+1, b.Tick)
}

// TickToBarBeat splits tick into bars of beatsPerBar quarter notes.
// beatsPerBar values below one are treated as one.
func TickToBarBeat(tick int64, beatsPerBar int) BarBeat {
	bpb := int64(max(beatsPerBar, 1))
	ticksPerBar := PPQ * bpb
	bar := floorDiv(tick, ticksPerBar)
	rem := tick - bar*ticksPerBar
	return BarBeat{
		Bar:  bar + 1,
		Beat: rem / PPQ,
		Tick: rem % PPQ,
	}
}

// BarBeatToTick is the inverse of TickToBarBeat.
func BarBeatToTick(bb BarBeat, beatsPerBar int) int64 {
	bpb := int64(max(beatsPerBar, 1))
	return (bb.Bar-1)*PPQ*bpb + bb.Beat*PPQ + bb.Tick
}

// BarToTick returns the first tick of a 1-based bar.
func BarToTick(bar int64, beatsPerBar int) int64 {
	return BarBeatToTick(BarBeat{Bar: bar}, beatsPerBar)
}

// SnapToGrid rounds tick to the nearest multiple of gridTicks. A remainder of
// exactly half a grid rounds up. Ticks already on the grid are returned
// unchanged, as is every tick when gridTicks is not positive.
func SnapToGrid(tick, gridTicks int64) int64 {
	if gridTicks <= 0 {
		return tick
	}
	base := floorDiv(tick, gridTicks) * gridTicks
	rem := tick - base
	if rem == 0 {
		return tick
	}
	if rem*2 >= gridTicks {
		return base + gridTicks
	}
	return base
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
