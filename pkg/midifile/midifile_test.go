package midifile

import (
	"bytes"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/timing"
)

func TestExportImport(t *testing.T) {
	clip := model.NewClip("Lead")
	clip.AddNote(60, 0, 960, 100)
	clip.AddNote(64, 480, 1440, 1)
	clip.AddNote(67, 960, 1920, 127)
	clip.AddCCEvent(model.PedalDown(0))
	clip.AddCCEvent(model.PedalUp(1920))

	var buf bytes.Buffer
	if err := Export(&buf, clip, Options{PPQ: 480, TempoBPM: 90, Numerator: 3, Denominator: 4}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	got := model.NewClip("imported")
	h, err := Import(bytes.NewReader(buf.Bytes()), got)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if h.PPQ != 480 {
		t.Errorf("Header.PPQ = %d, want 480", h.PPQ)
	}
	if h.TempoBPM < 89.99 || h.TempoBPM > 90.01 {
		t.Errorf("Header.TempoBPM = %v, want 90", h.TempoBPM)
	}
	if h.Numerator != 3 || h.Denominator != 4 {
		t.Errorf("Header meter = %d/%d, want 3/4", h.Numerator, h.Denominator)
	}

	want := clip.Notes()
	notes := got.Notes()
	if len(notes) != len(want) {
		t.Fatalf("imported %d notes, want %d", len(notes), len(want))
	}
	for i := range want {
		w, n := want[i], notes[i]
		if n.Pitch != w.Pitch || n.StartTick != w.StartTick || n.EndTick != w.EndTick || n.Velocity != w.Velocity {
			t.Errorf("note %d = %+v, want %+v", i, n, w)
		}
	}
	if ccs := got.CCEvents(); len(ccs) != 2 || !ccs[0].IsPedalOn() || ccs[1].Tick != 1920 {
		t.Errorf("CCEvents() = %+v, want pedal down at 0 and up at 1920", ccs)
	}
}

func TestExportVelocityIsRaw(t *testing.T) {
	clip := model.NewClip("")
	clip.AddNote(60, 0, 960, 100)

	var buf bytes.Buffer
	if err := Export(&buf, clip, DefaultOptions()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	found := false
	for _, ev := range s.Tracks[0] {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			found = true
			if vel != 100 {
				t.Errorf("note-on velocity = %d, want 100", vel)
			}
		}
	}
	if !found {
		t.Error("no note-on written")
	}
}

func TestExportOrdersOffBeforeOn(t *testing.T) {
	clip := model.NewClip("")
	clip.AddNote(60, 0, 960, 90)
	clip.AddNote(60, 960, 1920, 90)

	var buf bytes.Buffer
	if err := Export(&buf, clip, DefaultOptions()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	got := model.NewClip("")
	if _, err := Import(&buf, got); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	notes := got.Notes()
	if len(notes) != 2 {
		t.Fatalf("imported %d notes, want 2", len(notes))
	}
	if notes[0].EndTick != 960 || notes[1].StartTick != 960 {
		t.Errorf("notes = %+v, want back-to-back at 960", notes)
	}
}

func TestExportTempoMap(t *testing.T) {
	clip := model.NewClip("")
	clip.AddNote(60, 0, 3840, 90)
	tm := timing.NewTempoMap(100, 4, 4)
	tm.SetTempo(1920, 60)
	tm.SetMeter(3840, 7, 8)

	var buf bytes.Buffer
	if err := Export(&buf, clip, Options{PPQ: 480, Tempo: tm}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}

	type change struct {
		at  int64
		bpm float64
	}
	var tempos []change
	var meters []int64
	var abs int64
	for _, ev := range s.Tracks[0] {
		abs += int64(ev.Delta)
		var bpm float64
		var num, denom uint8
		switch {
		case ev.Message.GetMetaTempo(&bpm):
			tempos = append(tempos, change{abs, bpm})
		case ev.Message.GetMetaMeter(&num, &denom):
			meters = append(meters, abs)
		}
	}
	if len(tempos) != 2 || tempos[0].at != 0 || tempos[1].at != 960 {
		t.Fatalf("tempo events = %+v, want at 0 and 960", tempos)
	}
	if tempos[0].bpm < 99.99 || tempos[0].bpm > 100.01 || tempos[1].bpm < 59.99 || tempos[1].bpm > 60.01 {
		t.Errorf("tempo events = %+v, want 100 then 60", tempos)
	}
	if len(meters) != 2 || meters[0] != 0 || meters[1] != 1920 {
		t.Errorf("meter events at %v, want [0 1920]", meters)
	}
}

func TestExportKeepsShortNotes(t *testing.T) {
	clip := model.NewClip("")
	clip.AddNote(60, 0, 1, 90)
	clip.AddNote(62, 960, 961, 90)

	var buf bytes.Buffer
	if err := Export(&buf, clip, DefaultOptions()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	got := model.NewClip("")
	if _, err := Import(&buf, got); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	notes := got.Notes()
	if len(notes) != 2 {
		t.Fatalf("imported %d notes, want 2", len(notes))
	}
	for _, n := range notes {
		if n.Duration() != 2 {
			t.Errorf("note %d duration = %d, want one file tick (2)", n.Pitch, n.Duration())
		}
	}
}

func TestExportRescales(t *testing.T) {
	tests := []struct {
		tick int64
		ppq  uint16
		want int64
	}{
		{0, 480, 0},
		{960, 480, 480},
		{240, 96, 24},
		{1920, 960, 1920},
		{-5, 480, 0},
	}
	for _, tt := range tests {
		if got := toFile(tt.tick, tt.ppq); got != tt.want {
			t.Errorf("toFile(%d, %d) = %d, want %d", tt.tick, tt.ppq, got, tt.want)
		}
	}
	if got := fromFile(480, 480); got != 960 {
		t.Errorf("fromFile(480, 480) = %d, want 960", got)
	}
}

func TestNilClip(t *testing.T) {
	if err := Export(&bytes.Buffer{}, nil, DefaultOptions()); err != ErrNilClip {
		t.Errorf("Export(nil) error = %v, want ErrNilClip", err)
	}
	if _, err := Import(&bytes.Buffer{}, nil); err != ErrNilClip {
		t.Errorf("Import(nil) error = %v, want ErrNilClip", err)
	}
}

func TestImportGarbage(t *testing.T) {
	if _, err := Import(bytes.NewReader([]byte("not midi")), model.NewClip("")); err == nil {
		t.Error("Import(garbage) error = nil, want error")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mid")
	clip := model.NewClip("x")
	clip.AddNote(72, 240, 720, 64)
	if err := ExportFile(path, clip, DefaultOptions()); err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}
	got := model.NewClip("")
	h, err := ImportFile(path, got)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if h.Notes != 1 || got.NumNotes() != 1 {
		t.Errorf("ImportFile() notes = %d/%d, want 1", h.Notes, got.NumNotes())
	}
}

func TestIsMIDIFile(t *testing.T) {
	tests := map[string]bool{
		"a.mid":  true,
		"b.MIDI": true,
		"c.xml":  false,
		"d":      false,
	}
	for name, want := range tests {
		if got := IsMIDIFile(name); got != want {
			t.Errorf("IsMIDIFile(%q) = %v, want %v", name, got, want)
		}
	}
}
