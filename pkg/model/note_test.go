package model

import "testing"

func TestNewNote(t *testing.T) {
	tests := []struct {
		name               string
		pitch, vel         int
		start, end         int64
		wantPitch, wantVel int
		wantStart, wantEnd int64
	}{
		{"valid", 60, 100, 0, 480, 60, 100, 0, 480},
		{"pitch high", 200, 100, 0, 480, 127, 100, 0, 480},
		{"pitch low", -5, 100, 0, 480, 0, 100, 0, 480},
		{"velocity zero", 60, 0, 0, 480, 60, 1, 0, 480},
		{"velocity high", 60, 300, 0, 480, 60, 127, 0, 480},
		{"end before start", 60, 100, 960, 100, 60, 100, 960, 960 + MinNoteLength},
		{"zero length", 60, 100, 960, 960, 60, 100, 960, 960 + MinNoteLength},
		{"negative start", 60, 100, -50, 480, 60, 100, 0, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNote(tt.pitch, tt.start, tt.end, tt.vel)
			if n.Pitch != tt.wantPitch || n.Velocity != tt.wantVel || n.StartTick != tt.wantStart || n.EndTick != tt.wantEnd {
				t.Errorf("NewNote() = %+v, want pitch %d vel %d [%d,%d)", n, tt.wantPitch, tt.wantVel, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestNoteOverlaps(t *testing.T) {
	n := NewNote(60, 100, 200, 100)
	tests := []struct {
		start, end int64
		want       bool
	}{
		{0, 100, false},
		{0, 101, true},
		{199, 300, true},
		{200, 300, false},
		{120, 150, true},
		{0, 1000, true},
	}
	for _, tt := range tests {
		if got := n.Overlaps(tt.start, tt.end); got != tt.want {
			t.Errorf("Overlaps(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
	if !n.ContainsTick(100) || n.ContainsTick(200) {
		t.Error("ContainsTick() boundaries wrong")
	}
}

func TestNoteMoveResize(t *testing.T) {
	n := NewNote(60, 100, 300, 100)
	n.Move(-500)
	if n.StartTick != 0 || n.Duration() != 200 {
		t.Errorf("Move(-500) = [%d,%d), want [0,200)", n.StartTick, n.EndTick)
	}
	n.Resize(10)
	if n.EndTick != MinResizeLength {
		t.Errorf("Resize(10) end = %d, want %d", n.EndTick, MinResizeLength)
	}
	n.Resize(1000)
	if n.EndTick != 1000 {
		t.Errorf("Resize(1000) end = %d, want 1000", n.EndTick)
	}
}

func TestNoteLess(t *testing.T) {
	a := NewNote(64, 0, 100, 100)
	b := NewNote(60, 10, 100, 100)
	c := NewNote(67, 0, 100, 100)
	if !a.Less(b) || !a.Less(c) || c.Less(a) {
		t.Error("Less() does not order by start then pitch")
	}
}

func TestCCEvent(t *testing.T) {
	e := NewCCEvent(300, -4, 200)
	if e.CC != 127 || e.Tick != 0 || e.Value != 127 {
		t.Errorf("NewCCEvent() = %+v, want clamped", e)
	}
	if !PedalDown(0).IsPedalOn() || PedalUp(0).IsPedalOn() {
		t.Error("pedal helpers wrong")
	}
	if NewCCEvent(1, 0, 127).IsPedalOn() {
		t.Error("modwheel reported as pedal")
	}
}
