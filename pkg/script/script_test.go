package script

import (
	"errors"
	"testing"

	"github.com/james-see/pianodaw/pkg/edit"
	"github.com/james-see/pianodaw/pkg/model"
)

func TestInterpretQuantize(t *testing.T) {
	clip := model.NewClip("c")
	clip.AddNote(60, 10, 480, 100)
	clip.AddNote(64, 230, 700, 100)

	text := "```json\n" + `{"action": "smart_quantize", "reasoning": "tighten", "grid": "1/16",
		"qStrength": 100, "swing": 50, "mode": "strict", "selection": {"scope": "all"}}` + "\n```"
	res, err := Interpret(clip, []byte(text))
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if res.Reasoning != "tighten" {
		t.Errorf("Reasoning = %q, want tighten", res.Reasoning)
	}
	if res.Command == nil {
		t.Fatal("Command = nil, want quantize command")
	}

	stack := edit.NewUndoStack(10)
	stack.Execute(res.Command)
	notes := clip.Notes()
	if notes[0].StartTick != 0 || notes[1].StartTick != 240 {
		t.Errorf("starts = %d, %d, want 0, 240", notes[0].StartTick, notes[1].StartTick)
	}
	stack.Undo()
	if notes := clip.Notes(); notes[0].StartTick != 10 {
		t.Errorf("start after undo = %d, want 10", notes[0].StartTick)
	}
}

func TestInterpretQuantizeTimeRange(t *testing.T) {
	clip := model.NewClip("c")
	clip.AddNote(60, 10, 480, 100)
	clip.AddNote(64, 3850, 4000, 100)

	res, err := Interpret(clip, []byte(`{"action": "smart_quantize", "mode": "strict",
		"selection": {"scope": "time_range", "startTick": 3000, "endTick": 4000}}`))
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	res.Command.Execute()
	notes := clip.Notes()
	if notes[0].StartTick != 10 {
		t.Errorf("note outside range moved to %d", notes[0].StartTick)
	}
	if notes[1].StartTick != 3840 {
		t.Errorf("note in range start = %d, want 3840", notes[1].StartTick)
	}
}

func TestInterpretQuantizeNothingSelected(t *testing.T) {
	res, err := Interpret(model.NewClip("c"), []byte(`{"action": "smart_quantize"}`))
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if res.Command != nil {
		t.Errorf("Command = %v, want nil for an empty clip", res.Command)
	}
}

func TestQuantizeParams(t *testing.T) {
	s, sw := 80.0, 60.0
	p := quantizeParams(request{Grid: "1/8", QStrength: &s, Swing: &sw})
	if p.GridTicks != 480 || p.Strength != 0.8 || p.Swing != 0.6 || !p.SmartChord {
		t.Errorf("quantizeParams() = %+v", p)
	}
	p = quantizeParams(request{Grid: "bogus", Mode: "strict"})
	if p.GridTicks != 240 || p.SmartChord {
		t.Errorf("quantizeParams(bogus) = %+v, want 1/16 without smart chord", p)
	}
}

func TestInterpretProgression(t *testing.T) {
	clip := model.NewClip("c")
	res, err := Interpret(clip, []byte(`{"action": "generate_progression",
		"composition": {"progression": ["C", "Am", "F", "G7"]},
		"selection": {"startTick": 3840}}`))
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	res.Command.Execute()
	if got := clip.NumNotes(); got != 13 {
		t.Fatalf("NumNotes() = %d, want 13", got)
	}
	notes := clip.Notes()
	if notes[0].StartTick != 3840 || notes[0].EndTick != 3840+1728 {
		t.Errorf("first chord spans %d..%d, want 3840..5568", notes[0].StartTick, notes[0].EndTick)
	}
	last := notes[len(notes)-1]
	if last.StartTick != 3840+3*ChordTicks {
		t.Errorf("last chord start = %d, want %d", last.StartTick, 3840+3*ChordTicks)
	}
	if notes[0].Velocity != 89 {
		t.Errorf("Velocity = %d, want 89", notes[0].Velocity)
	}
	if res.Command.Description() != "Generate Progression" {
		t.Errorf("Description() = %q", res.Command.Description())
	}
}

func TestInterpretMelodyNotes(t *testing.T) {
	clip := model.NewClip("c")
	res, err := Interpret(clip, []byte(`{"action": "generate_melody", "composition": {"notes": [
		{"pitch": 72, "startTick": 0, "duration": 240, "velocity": 0.5},
		{"pitch": 74, "startTick": 240, "velocity": 100},
		{"startTick": 480}
	]}}`))
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	res.Command.Execute()
	notes := clip.Notes()
	want := []model.Note{
		{Pitch: 72, StartTick: 0, EndTick: 240, Velocity: 64},
		{Pitch: 74, StartTick: 240, EndTick: 720, Velocity: 100},
		{Pitch: 60, StartTick: 480, EndTick: 960, Velocity: 102},
	}
	if len(notes) != len(want) {
		t.Fatalf("NumNotes() = %d, want %d", len(notes), len(want))
	}
	for i, w := range want {
		n := notes[i]
		if n.Pitch != w.Pitch || n.StartTick != w.StartTick || n.EndTick != w.EndTick || n.Velocity != w.Velocity {
			t.Errorf("note %d = %+v, want %+v", i, n, w)
		}
	}
}

func TestInterpretErrors(t *testing.T) {
	clip := model.NewClip("c")
	tests := []struct {
		name string
		text string
		want error
	}{
		{"unknown action", `{"action": "make_coffee"}`, ErrUnknownAction},
		{"not an object", `["smart_quantize"]`, ErrNotObject},
		{"empty", "   ", ErrNotObject},
		{"bad chord", `{"action": "generate_progression", "composition": {"progression": ["Hm"]}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Interpret(clip, []byte(tt.text))
			if err == nil {
				t.Fatal("Interpret() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Interpret() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStripFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range tests {
		if got := string(stripFence([]byte(in))); got != want {
			t.Errorf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}
