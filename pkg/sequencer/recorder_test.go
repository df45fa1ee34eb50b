package sequencer

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/pianodaw/pkg/model"
)

func TestRecorderPairsNotes(t *testing.T) {
	clip := model.NewClip("rec")
	r := NewRecorder(nil)
	r.Start(clip, 0)

	r.Process([]midi.Message{midi.NoteOn(0, 60, 90)}, 100)
	r.Process([]midi.Message{midi.NoteOn(0, 64, 70)}, 200)
	r.Process([]midi.Message{midi.NoteOff(0, 60)}, 500)
	r.Process([]midi.Message{midi.NoteOn(0, 64, 0)}, 700)
	r.Process([]midi.Message{midi.NoteOff(0, 72)}, 800)

	notes := clip.Notes()
	if len(notes) != 2 {
		t.Fatalf("recorded %d notes, want 2", len(notes))
	}
	want := []model.Note{
		{Pitch: 60, StartTick: 100, EndTick: 500, Velocity: 90},
		{Pitch: 64, StartTick: 200, EndTick: 700, Velocity: 70},
	}
	for i, w := range want {
		n := notes[i]
		if n.Pitch != w.Pitch || n.StartTick != w.StartTick || n.EndTick != w.EndTick || n.Velocity != w.Velocity {
			t.Errorf("note %d = %+v, want %+v", i, n, w)
		}
	}
}

func TestRecorderMinimumLength(t *testing.T) {
	clip := model.NewClip("rec")
	r := NewRecorder(nil)
	r.Start(clip, 0)
	r.Process([]midi.Message{midi.NoteOn(0, 60, 90), midi.NoteOff(0, 60)}, 480)

	n := clip.Notes()[0]
	if got := n.Duration(); got != MinRecordedLength {
		t.Errorf("Duration() = %d, want %d", got, MinRecordedLength)
	}
}

func TestRecorderQuantizeInput(t *testing.T) {
	clip := model.NewClip("rec")
	r := NewRecorder(nil)
	r.SetQuantizeInput(true, 240)
	r.Start(clip, 0)
	r.Process([]midi.Message{midi.NoteOn(0, 60, 90)}, 130)
	r.Process([]midi.Message{midi.NoteOff(0, 60)}, 470)

	n := clip.Notes()[0]
	if n.StartTick != 240 || n.EndTick != 480 {
		t.Errorf("note = %d..%d, want 240..480", n.StartTick, n.EndTick)
	}
}

func TestRecorderReplaceMode(t *testing.T) {
	clip := model.NewClip("rec")
	clip.AddNote(60, 0, 960, 100)
	clip.AddNote(62, 0, 960, 100)

	r := NewRecorder(nil)
	r.SetReplaceMode(true)
	r.Start(clip, 0)
	r.Process([]midi.Message{midi.NoteOn(0, 60, 90)}, 480)
	r.Process([]midi.Message{midi.NoteOff(0, 60)}, 720)

	notes := clip.Notes()
	if len(notes) != 2 {
		t.Fatalf("notes after replace = %d, want 2", len(notes))
	}
	for _, n := range notes {
		if n.Pitch == 60 && n.StartTick != 480 {
			t.Errorf("old note on 60 survived: %+v", n)
		}
	}
}

func TestRecorderControlChange(t *testing.T) {
	clip := model.NewClip("rec")
	r := NewRecorder(nil)
	r.Start(clip, 0)
	r.Process([]midi.Message{midi.ControlChange(0, model.SustainPedal, 127)}, 960)

	evs := clip.CCEvents()
	if len(evs) != 1 || !evs[0].IsPedalOn() || evs[0].Tick != 960 {
		t.Errorf("CCEvents() = %+v, want pedal down at 960", evs)
	}
}

func TestRecorderIdle(t *testing.T) {
	clip := model.NewClip("rec")
	r := NewRecorder(nil)
	r.Process([]midi.Message{midi.NoteOn(0, 60, 90), midi.NoteOff(0, 60)}, 0)
	if clip.NumNotes() != 0 {
		t.Errorf("NumNotes() = %d while idle, want 0", clip.NumNotes())
	}

	r.Start(clip, 0)
	r.Process([]midi.Message{midi.NoteOn(0, 60, 90)}, 0)
	r.Stop()
	if r.Recording() {
		t.Error("Recording() = true after Stop")
	}
	r.Process([]midi.Message{midi.NoteOff(0, 60)}, 480)
	if clip.NumNotes() != 0 {
		t.Errorf("NumNotes() = %d after Stop, want 0", clip.NumNotes())
	}
}

func TestEngineFeedsRecorder(t *testing.T) {
	_, clip, _, tr, e := setup(t)
	e.Recorder().Start(clip, 0)
	tr.Start()
	tr.SetPosition(0)
	e.ProcessBlock([]midi.Message{midi.NoteOn(0, 48, 80)})
	tr.SetPosition(960)
	e.ProcessBlock([]midi.Message{midi.NoteOff(0, 48)})

	notes := clip.Notes()
	if len(notes) != 1 || notes[0].Pitch != 48 || notes[0].EndTick != 960 {
		t.Errorf("recorded notes = %+v, want 48 over 0..960", notes)
	}
}
