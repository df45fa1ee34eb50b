package model

import (
	"sync"
	"testing"
)

func TestProjectDefaults(t *testing.T) {
	p := NewProject("")
	info := p.Info()
	if info.Name != "Untitled" || info.Tempo != 120 || info.Numerator != 4 || info.Length != DefaultLength {
		t.Errorf("Info() = %+v", info)
	}
	p.SetTempo(5)
	if p.Tempo() != MinTempo {
		t.Errorf("SetTempo(5) = %v, want %v", p.Tempo(), MinTempo)
	}
	p.SetTempo(5000)
	if p.Tempo() != MaxTempo {
		t.Errorf("SetTempo(5000) = %v, want %v", p.Tempo(), MaxTempo)
	}
	p.SetTimeSignature(0, 64)
	if n, d := p.TimeSignature(); n != 1 || d != 32 {
		t.Errorf("TimeSignature() = %d/%d, want 1/32", n, d)
	}
	p.SetLoopRange(-10, -20)
	if s, e := p.LoopRange(); s != 0 || e != 0 {
		t.Errorf("LoopRange() = %d, %d, want 0, 0", s, e)
	}
}

func TestProjectClipHandles(t *testing.T) {
	p := NewProject("p")
	h1, c1 := p.AddClip("one")
	h2, _ := p.AddClip("two")

	if got, ok := p.Clip(h1); !ok || got != c1 {
		t.Fatal("Clip(h1) did not resolve")
	}
	if _, ok := p.Clip(ClipHandle{}); ok {
		t.Error("zero handle resolved")
	}

	tr := p.AddTrack("t", TrackMIDI)
	tr.AddClipRegion(ClipRegion{Clip: h1, LengthTick: 960})
	tr.AddClipRegion(ClipRegion{Clip: h2, LengthTick: 960})
	tr.AddClipRegion(ClipRegion{Clip: h1, StartTick: 960, LengthTick: 960})

	n, ok := p.RemoveClip(h1)
	if !ok || n != 2 {
		t.Errorf("RemoveClip() = %d, %v, want 2, true", n, ok)
	}
	if _, ok := p.Clip(h1); ok {
		t.Error("stale handle resolved after RemoveClip")
	}
	if _, ok := p.RemoveClip(h1); ok {
		t.Error("RemoveClip() of stale handle = true")
	}
	if got := len(tr.ClipRegions()); got != 1 {
		t.Errorf("regions left = %d, want 1", got)
	}

	h3, c3 := p.AddClip("three")
	if h3.Index != h1.Index || h3.Generation == h1.Generation {
		t.Errorf("slot not reused with new generation: %v vs %v", h3, h1)
	}
	if got, _ := p.Clip(h3); got != c3 {
		t.Error("Clip(h3) did not resolve")
	}
	if p.NumClips() != 2 || len(p.ClipHandles()) != 2 {
		t.Errorf("NumClips() = %d, want 2", p.NumClips())
	}
}

func TestProjectTracks(t *testing.T) {
	p := NewProject("p")
	a := p.AddTrack("a", TrackMIDI)
	b := p.AddTrack("b", TrackDrum)
	if p.TrackIndex(b) != 1 {
		t.Errorf("TrackIndex(b) = %d, want 1", p.TrackIndex(b))
	}
	got, ok := p.RemoveTrack(0)
	if !ok || got != a {
		t.Error("RemoveTrack(0) did not return first track")
	}
	if _, ok := p.RemoveTrack(5); ok {
		t.Error("RemoveTrack(5) = true")
	}
	p.InsertTrack(0, a)
	if tr, _ := p.Track(0); tr != a {
		t.Error("InsertTrack(0) did not restore order")
	}
}

func TestProjectReadBlockWhileEditing(t *testing.T) {
	p := NewProject("p")
	h, c := p.AddClip("c")
	tr := p.AddTrack("t", TrackMIDI)
	tr.AddClipRegion(ClipRegion{Clip: h, LengthTick: 1 << 20})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.AddNote(60, int64(i), int64(i+10), 90)
			tr.SetMuted(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			p.ReadBlock(func(v BlockView) {
				for _, t := range v.Tracks {
					t.Read(func(s TrackState) {
						for _, r := range s.Regions {
							if cl := v.Clip(r.Clip); cl != nil {
								cl.Read(func(notes []Note, _ []CCEvent) { _ = len(notes) })
							}
						}
					})
				}
			})
		}
	}()
	wg.Wait()
	if c.NumNotes() != 500 {
		t.Errorf("NumNotes() = %d, want 500", c.NumNotes())
	}
}
