package edit

import (
	"fmt"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/timing"
)

// AddClipRegion places a clip on a track. Redo reuses the first region id.
type AddClipRegion struct {
	track  *model.Track
	region model.ClipRegion
}

func NewAddClipRegion(track *model.Track, r model.ClipRegion) *AddClipRegion {
	r.ID = 0
	return &AddClipRegion{track: track, region: r}
}

func (c *AddClipRegion) Execute() {
	if c.region.ID == 0 {
		c.region.ID = c.track.AddClipRegion(c.region)
		c.region, _ = c.track.ClipRegion(c.region.ID)
		return
	}
	c.track.RestoreClipRegion(c.region)
}

func (c *AddClipRegion) Undo() { c.track.RemoveClipRegion(c.region.ID) }

func (c *AddClipRegion) Description() string { return "Add Clip Region" }

// ID returns the id assigned by the first Execute.
func (c *AddClipRegion) ID() model.RegionID { return c.region.ID }

// RemoveClipRegion takes a region off a track.
type RemoveClipRegion struct {
	track   *model.Track
	id      model.RegionID
	removed model.ClipRegion
	ok      bool
}

func NewRemoveClipRegion(track *model.Track, id model.RegionID) *RemoveClipRegion {
	return &RemoveClipRegion{track: track, id: id}
}

func (c *RemoveClipRegion) Execute() {
	c.removed, c.ok = c.track.RemoveClipRegion(c.id)
}

func (c *RemoveClipRegion) Undo() {
	if c.ok {
		c.track.RestoreClipRegion(c.removed)
	}
}

func (c *RemoveClipRegion) Description() string { return "Remove Clip Region" }

// MoveClipRegion sets a region's placement: timeline start, trim offset and
// length.
type MoveClipRegion struct {
	track         *model.Track
	id            model.RegionID
	start, offset int64
	length        int64
	old           model.ClipRegion
	ok            bool
}

func NewMoveClipRegion(track *model.Track, id model.RegionID, start, offset, length int64) *MoveClipRegion {
	return &MoveClipRegion{track: track, id: id, start: start, offset: offset, length: length}
}

func (c *MoveClipRegion) Execute() {
	c.ok = c.track.UpdateClipRegion(c.id, func(r *model.ClipRegion) {
		c.old = *r
		r.StartTick, r.OffsetTick, r.LengthTick = c.start, c.offset, c.length
	})
}

func (c *MoveClipRegion) Undo() {
	if !c.ok {
		return
	}
	c.track.UpdateClipRegion(c.id, func(r *model.ClipRegion) {
		r.StartTick, r.OffsetTick, r.LengthTick = c.old.StartTick, c.old.OffsetTick, c.old.LengthTick
	})
}

func (c *MoveClipRegion) Description() string { return "Move Clip Region" }

// Tempoer is anything with an adjustable tempo.
type Tempoer interface {
	Tempo() float64
	SetTempo(bpm float64)
}

// SetTempo changes the tempo of every target together. The tempo is clamped
// to model.MinTempo..MaxTempo first so every target agrees.
type SetTempo struct {
	bpm     float64
	targets []Tempoer
	old     []float64
}

func NewSetTempo(bpm float64, targets ...Tempoer) *SetTempo {
	return &SetTempo{bpm: min(max(bpm, model.MinTempo), model.MaxTempo), targets: targets}
}

func (c *SetTempo) Execute() {
	c.old = c.old[:0]
	for _, t := range c.targets {
		c.old = append(c.old, t.Tempo())
		t.SetTempo(c.bpm)
	}
}

func (c *SetTempo) Undo() {
	for i := len(c.targets) - 1; i >= 0; i-- {
		c.targets[i].SetTempo(c.old[i])
	}
}

func (c *SetTempo) Description() string { return fmt.Sprintf("Set Tempo %.1f", c.bpm) }

// ImportClip adds a clip to the pool together with a new MIDI track that
// plays it from the start of the timeline. Undo removes both; redo attaches
// the clip under a new handle.
type ImportClip struct {
	project *model.Project
	clip    *model.Clip
	name    string
	track   *model.Track
	region  model.RegionID
	index   int
	handle  model.ClipHandle
}

func NewImportClip(p *model.Project, c *model.Clip, trackName string) *ImportClip {
	return &ImportClip{project: p, clip: c, name: trackName}
}

func (c *ImportClip) Execute() {
	c.handle = c.project.AttachClip(c.clip)
	if c.track == nil {
		c.track = model.NewTrack(c.name, model.TrackMIDI)
		length := max(c.clip.TotalDuration(), int64(timing.PPQ*4))
		c.region = c.track.AddClipRegion(model.ClipRegion{Clip: c.handle, LengthTick: length})
		c.index = c.project.NumTracks()
	} else {
		if r, ok := c.track.RemoveClipRegion(c.region); ok {
			r.Clip = c.handle
			c.track.RestoreClipRegion(r)
		}
	}
	c.project.InsertTrack(c.index, c.track)
}

func (c *ImportClip) Undo() {
	if i := c.project.TrackIndex(c.track); i >= 0 {
		c.project.RemoveTrack(i)
	}
	c.project.RemoveClip(c.handle)
}

func (c *ImportClip) Description() string { return "Import Clip" }

// Handle returns the clip's handle from the latest Execute.
func (c *ImportClip) Handle() model.ClipHandle { return c.handle }

// TrackSettings is the mixer state of a track.
type TrackSettings struct {
	Name   string  `json:"name"`
	Muted  bool    `json:"muted"`
	Solo   bool    `json:"solo"`
	Volume float64 `json:"volume"`
	Pan    float64 `json:"pan"`
}

// SettingsOf reads the mixer state of t.
func SettingsOf(t *model.Track) TrackSettings {
	return TrackSettings{Name: t.Name(), Muted: t.Muted(), Solo: t.Solo(), Volume: t.Volume(), Pan: t.Pan()}
}

func (s TrackSettings) apply(t *model.Track) {
	t.SetName(s.Name)
	t.SetMuted(s.Muted)
	t.SetSolo(s.Solo)
	t.SetVolume(s.Volume)
	t.SetPan(s.Pan)
}

// SetTrackSettings replaces a track's name, mute, solo, volume and pan.
type SetTrackSettings struct {
	track *model.Track
	next  TrackSettings
	prev  TrackSettings
}

func NewSetTrackSettings(t *model.Track, s TrackSettings) *SetTrackSettings {
	return &SetTrackSettings{track: t, next: s}
}

func (c *SetTrackSettings) Execute() {
	c.prev = SettingsOf(c.track)
	c.next.apply(c.track)
}

func (c *SetTrackSettings) Undo() { c.prev.apply(c.track) }

func (c *SetTrackSettings) Description() string { return "Track Settings" }
