package model

// SustainPedal is the controller number of the damper pedal.
const SustainPedal = 64

// CCEvent is a MIDI control change. A clip holds at most one event per
// (Tick, CC) pair.
type CCEvent struct {
	CC    int   `json:"cc" yaml:"cc"`
	Tick  int64 `json:"tick" yaml:"tick"`
	Value int   `json:"value" yaml:"value"`
}

// NewCCEvent clamps cc and value to 0..127 and tick to zero or later.
func NewCCEvent(cc int, tick int64, value int) CCEvent {
	return CCEvent{
		CC:    min(max(cc, 0), 127),
		Tick:  max(tick, 0),
		Value: min(max(value, 0), 127),
	}
}

// PedalDown returns a sustain pedal press at tick.
func PedalDown(tick int64) CCEvent { return NewCCEvent(SustainPedal, tick, 127) }

// PedalUp returns a sustain pedal release at tick.
func PedalUp(tick int64) CCEvent { return NewCCEvent(SustainPedal, tick, 0) }

func (e CCEvent) IsSustainPedal() bool { return e.CC == SustainPedal }

// IsPedalOn reports whether a sustain event holds the pedal down.
func (e CCEvent) IsPedalOn() bool { return e.IsSustainPedal() && e.Value >= 64 }

// Less orders events by tick, then controller number.
func (e CCEvent) Less(o CCEvent) bool {
	if e.Tick != o.Tick {
		return e.Tick < o.Tick
	}
	return e.CC < o.CC
}
