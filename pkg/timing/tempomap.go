package timing

import "sort"

// TempoChange sets the tempo from Tick onwards.
type TempoChange struct {
	Tick int64
	BPM  float64
}

// MeterChange sets the time signature from Tick onwards.
type MeterChange struct {
	Tick        int64
	Numerator   int
	Denominator int
}

// TempoMap holds tempo and time signature changes sorted by tick. The zero
// value is 120 BPM in 4/4.
type TempoMap struct {
	tempos []TempoChange
	meters []MeterChange
}

// NewTempoMap returns a map with a single tempo and time signature at tick 0.
func NewTempoMap(bpm float64, numerator, denominator int) *TempoMap {
	m := &TempoMap{}
	m.SetTempo(0, bpm)
	m.SetMeter(0, numerator, denominator)
	return m
}

// SetTempo inserts or replaces the tempo change at tick.
func (m *TempoMap) SetTempo(tick int64, bpm float64) {
	tick = max(tick, 0)
	bpm = max(bpm, MinTempo)
	i := sort.Search(len(m.tempos), func(i int) bool { return m.tempos[i].Tick >= tick })
	if i < len(m.tempos) && m.tempos[i].Tick == tick {
		m.tempos[i].BPM = bpm
		return
	}
	m.tempos = append(m.tempos, TempoChange{})
	copy(m.tempos[i+1:], m.tempos[i:])
	m.tempos[i] = TempoChange{Tick: tick, BPM: bpm}
}

// SetMeter inserts or replaces the time signature change at tick.
func (m *TempoMap) SetMeter(tick int64, numerator, denominator int) {
	tick = max(tick, 0)
	mc := MeterChange{Tick: tick, Numerator: min(max(numerator, 1), 32), Denominator: min(max(denominator, 1), 32)}
	i := sort.Search(len(m.meters), func(i int) bool { return m.meters[i].Tick >= tick })
	if i < len(m.meters) && m.meters[i].Tick == tick {
		m.meters[i] = mc
		return
	}
	m.meters = append(m.meters, MeterChange{})
	copy(m.meters[i+1:], m.meters[i:])
	m.meters[i] = mc
}

// TempoAt returns the tempo in effect at tick.
func (m *TempoMap) TempoAt(tick int64) float64 {
	for i := len(m.tempos) - 1; i >= 0; i-- {
		if m.tempos[i].Tick <= tick {
			return m.tempos[i].BPM
		}
	}
	return 120
}

// MeterAt returns the time signature in effect at tick.
func (m *TempoMap) MeterAt(tick int64) MeterChange {
	for i := len(m.meters) - 1; i >= 0; i-- {
		if m.meters[i].Tick <= tick {
			return m.meters[i]
		}
	}
	return MeterChange{Numerator: 4, Denominator: 4}
}

// Tempos returns a copy of the tempo changes.
func (m *TempoMap) Tempos() []TempoChange {
	return append([]TempoChange(nil), m.tempos...)
}

// Meters returns a copy of the time signature changes.
func (m *TempoMap) Meters() []MeterChange {
	return append([]MeterChange(nil), m.meters...)
}

// Seconds returns the wall-clock time of tick, following every tempo change
// before it.
func (m *TempoMap) Seconds(tick int64) float64 {
	var secs float64
	prevTick := int64(0)
	bpm := 120.0
	for _, tc := range m.tempos {
		if tc.Tick >= tick {
			break
		}
		secs += TickToSeconds(tc.Tick-prevTick, bpm)
		prevTick, bpm = tc.Tick, tc.BPM
	}
	return secs + TickToSeconds(tick-prevTick, bpm)
}
