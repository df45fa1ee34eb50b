package model

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func buildProject() *Project {
	p := NewProject("Demo")
	p.SetTempo(96)
	p.SetTimeSignature(3, 4)
	p.SetLoopRange(960, 5760)

	h1, c1 := p.AddClip("Verse")
	c1.AddNote(60, 0, 480, 100)
	c1.AddNote(64, 480, 960, 90)
	removed := c1.AddNote(65, 960, 1200, 80)
	c1.RemoveNote(removed)
	c1.AddCCEvent(PedalDown(0))
	c1.AddCCEvent(PedalUp(900))

	h2, c2 := p.AddClip("Chorus")
	c2.AddNote(67, 0, 960, 127)

	piano := p.AddTrack("Piano", TrackMIDI)
	piano.SetColor(Color{R: 10, G: 20, B: 30})
	piano.SetVolume(0.5)
	piano.SetPan(-0.25)
	piano.AddClipRegion(ClipRegion{Clip: h1, StartTick: 0, OffsetTick: 0, LengthTick: 3840})
	piano.AddClipRegion(ClipRegion{Clip: h2, StartTick: 3840, OffsetTick: 240, LengthTick: 1920, Muted: true})

	drums := p.AddTrack("Drums", TrackDrum)
	drums.SetSolo(true)
	drums.SetMuted(true)
	return p
}

func TestProjectRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatXML, FormatYAML, FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			src := buildProject()
			var buf bytes.Buffer
			if err := src.Encode(&buf, f); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got := DetectFormatFromContent(buf.Bytes()); got != f {
				t.Errorf("DetectFormatFromContent() = %v, want %v", got, f)
			}

			dst := NewProject("")
			if err := dst.Decode(&buf, f); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			compareProjects(t, src, dst)
		})
	}
}

func compareProjects(t *testing.T, src, dst *Project) {
	t.Helper()
	si, di := src.Info(), dst.Info()
	if si.Name != di.Name || si.Tempo != di.Tempo || si.Numerator != di.Numerator ||
		si.Length != di.Length || si.LoopStart != di.LoopStart || si.LoopEnd != di.LoopEnd {
		t.Errorf("info = %+v, want %+v", di, si)
	}
	if si.NumTracks != di.NumTracks || si.NumClips != di.NumClips {
		t.Fatalf("counts = %d tracks %d clips, want %d, %d", di.NumTracks, di.NumClips, si.NumTracks, si.NumClips)
	}

	sh, dh := src.ClipHandles(), dst.ClipHandles()
	for i := range sh {
		sc, _ := src.Clip(sh[i])
		dc, _ := dst.Clip(dh[i])
		if sc.Name() != dc.Name() {
			t.Errorf("clip %d name = %q, want %q", i, dc.Name(), sc.Name())
		}
		sn, dn := sc.Notes(), dc.Notes()
		if len(sn) != len(dn) {
			t.Fatalf("clip %d notes = %d, want %d", i, len(dn), len(sn))
		}
		for j := range sn {
			if sn[j] != dn[j] {
				t.Errorf("clip %d note %d = %+v, want %+v", i, j, dn[j], sn[j])
			}
		}
		if len(sc.CCEvents()) != len(dc.CCEvents()) {
			t.Errorf("clip %d cc events = %d, want %d", i, len(dc.CCEvents()), len(sc.CCEvents()))
		}
		if sc.NextNoteID() != dc.NextNoteID() {
			t.Errorf("clip %d next id = %d, want %d", i, dc.NextNoteID(), sc.NextNoteID())
		}
	}

	st, dt := src.Tracks(), dst.Tracks()
	for i := range st {
		if st[i].Name() != dt[i].Name() || st[i].Type() != dt[i].Type() || st[i].Color() != dt[i].Color() ||
			st[i].Solo() != dt[i].Solo() || st[i].Muted() != dt[i].Muted() ||
			st[i].Volume() != dt[i].Volume() || st[i].Pan() != dt[i].Pan() {
			t.Errorf("track %d differs", i)
		}
		sr, dr := st[i].ClipRegions(), dt[i].ClipRegions()
		if len(sr) != len(dr) {
			t.Fatalf("track %d regions = %d, want %d", i, len(dr), len(sr))
		}
		for j := range sr {
			a, b := sr[j], dr[j]
			if a.ID != b.ID || a.StartTick != b.StartTick || a.OffsetTick != b.OffsetTick ||
				a.LengthTick != b.LengthTick || a.Muted != b.Muted {
				t.Errorf("track %d region %d = %+v, want %+v", i, j, b, a)
			}
			if indexOf(sh, a.Clip) != indexOf(dh, b.Clip) {
				t.Errorf("track %d region %d points at a different clip", i, j)
			}
		}
	}
}

func indexOf(hs []ClipHandle, h ClipHandle) int {
	for i := range hs {
		if hs[i] == h {
			return i
		}
	}
	return -1
}

// Region length must come from the lengthTick attribute.
func TestDecodeRegionLength(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<PianoDAWProject version="1.0">
  <ProjectInfo><Name>x</Name><Tempo>120</Tempo><TimeSignature numerator="4" denominator="4"/><ProjectLength>122880</ProjectLength></ProjectInfo>
  <Clips><Clip id="7" name="c"><Note id="1" pitch="60" startTick="0" endTick="480" velocity="100"/></Clip></Clips>
  <Tracks><Track id="1" name="t" type="MIDI"><Color r="0" g="0" b="255"/><Solo>false</Solo><Mute>false</Mute><Volume>0.8</Volume><Pan>0</Pan>
    <ClipRegion clipId="7" startTick="960" offsetTick="0" lengthTick="1920" muted="false"/>
    <ClipRegion clipId="99" startTick="0" offsetTick="0" lengthTick="1920" muted="false"/>
  </Track></Tracks>
</PianoDAWProject>`
	p := NewProject("")
	if err := p.Decode(strings.NewReader(doc), FormatXML); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	tr, _ := p.Track(0)
	regions := tr.ClipRegions()
	if len(regions) != 1 {
		t.Fatalf("len(regions) = %d, want 1 (unknown clip skipped)", len(regions))
	}
	if regions[0].LengthTick != 1920 {
		t.Errorf("LengthTick = %d, want 1920", regions[0].LengthTick)
	}
	if _, ok := p.Clip(regions[0].Clip); !ok {
		t.Error("region clip handle does not resolve")
	}
	if s, e := p.LoopRange(); s != 0 || e != DefaultLoopEnd {
		t.Errorf("LoopRange() = %d, %d, want default", s, e)
	}
}

func TestDecodeInvalidatesHandles(t *testing.T) {
	p := buildProject()
	old := p.ClipHandles()
	var buf bytes.Buffer
	if err := p.Encode(&buf, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if err := p.Decode(&buf, FormatJSON); err != nil {
		t.Fatal(err)
	}
	for _, h := range old {
		if _, ok := p.Clip(h); ok {
			t.Errorf("handle %v still resolves after Decode", h)
		}
	}
	if p.NumClips() != len(old) {
		t.Errorf("NumClips() = %d, want %d", p.NumClips(), len(old))
	}
}

func TestDecodeErrors(t *testing.T) {
	p := NewProject("")
	if err := p.Decode(strings.NewReader(`{"name":"x"}`), FormatJSON); !errors.Is(err, ErrNotProject) {
		t.Errorf("Decode(no version) error = %v, want ErrNotProject", err)
	}
	if err := p.Decode(strings.NewReader(`<Other/>`), FormatXML); err == nil {
		t.Error("Decode(wrong root) expected error")
	}
	if err := p.Decode(strings.NewReader(``), FormatUnknown); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Decode(unknown) error = %v", err)
	}
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"song.xml", "song.yaml", "song.json", "song.pdaw"} {
		t.Run(name, func(t *testing.T) {
			src := buildProject()
			path := filepath.Join(dir, name)
			if err := src.SaveFile(path); err != nil {
				t.Fatalf("SaveFile() error = %v", err)
			}
			if src.Modified() || src.FilePath() != path {
				t.Error("SaveFile() did not record path or clear modified")
			}
			dst, err := OpenProject(path)
			if err != nil {
				t.Fatalf("OpenProject() error = %v", err)
			}
			compareProjects(t, src, dst)
		})
	}
	if _, err := OpenProject(filepath.Join(dir, "missing.xml")); err == nil {
		t.Error("OpenProject(missing) expected error")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"a.xml", FormatXML},
		{"a.PDAW", FormatXML},
		{"a.yml", FormatYAML},
		{"a.yaml", FormatYAML},
		{"a.json", FormatJSON},
		{"a.mid", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectFormat(tt.filename); got != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.expected)
			}
		})
	}
}
