package model

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/james-see/pianodaw/pkg/timing"
)

// TrackType is the kind of content a track carries.
type TrackType int

const (
	TrackMIDI TrackType = iota
	TrackAudio
	TrackInstrument
	TrackDrum
	TrackGroup
	TrackFolder
)

var trackTypeNames = []string{"MIDI", "Audio", "Instrument", "Drum", "Group", "Folder"}

func (t TrackType) String() string {
	if t >= 0 && int(t) < len(trackTypeNames) {
		return trackTypeNames[t]
	}
	return fmt.Sprintf("TrackType(%d)", int(t))
}

// ParseTrackType matches a track type name case-insensitively.
func ParseTrackType(s string) (TrackType, error) {
	for i, name := range trackTypeNames {
		if strings.EqualFold(name, s) {
			return TrackType(i), nil
		}
	}
	return TrackMIDI, fmt.Errorf("unknown track type %q", s)
}

// Color is an RGB display colour.
type Color struct {
	R, G, B uint8
}

// DefaultTrackColor is the colour of new tracks.
var DefaultTrackColor = Color{R: 0, G: 0, B: 255}

// QuantizeSettings are a track's quantize defaults.
type QuantizeSettings struct {
	Enabled    bool
	GridTicks  int64
	Strength   float64
	Swing      float64
	SmartChord bool
}

// DefaultQuantizeSettings returns full-strength 1/16 quantize without swing.
func DefaultQuantizeSettings() QuantizeSettings {
	return QuantizeSettings{
		Enabled:    true,
		GridTicks:  timing.GridSixteenth.Ticks(),
		Strength:   1,
		Swing:      0.5,
		SmartChord: true,
	}
}

// Track is a timeline lane holding clip regions sorted by start tick.
type Track struct {
	mu           sync.RWMutex
	name         string
	typ          TrackType
	color        Color
	solo, muted  bool
	volume, pan  float64
	quantize     QuantizeSettings
	regions      []ClipRegion
	nextRegionID RegionID
}

// NewTrack returns an empty track at volume 0.8, centred.
func NewTrack(name string, typ TrackType) *Track {
	return &Track{
		name:         name,
		typ:          typ,
		color:        DefaultTrackColor,
		volume:       0.8,
		quantize:     DefaultQuantizeSettings(),
		nextRegionID: 1,
	}
}

func (t *Track) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *Track) SetName(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

func (t *Track) Type() TrackType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typ
}

func (t *Track) SetType(typ TrackType) {
	t.mu.Lock()
	t.typ = typ
	t.mu.Unlock()
}

func (t *Track) Color() Color {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.color
}

func (t *Track) SetColor(c Color) {
	t.mu.Lock()
	t.color = c
	t.mu.Unlock()
}

func (t *Track) Solo() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.solo
}

func (t *Track) SetSolo(solo bool) {
	t.mu.Lock()
	t.solo = solo
	t.mu.Unlock()
}

func (t *Track) Muted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.muted
}

func (t *Track) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

func (t *Track) Volume() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volume
}

// SetVolume sets the gain, clamped to 0..1.
func (t *Track) SetVolume(v float64) {
	t.mu.Lock()
	t.volume = min(max(v, 0), 1)
	t.mu.Unlock()
}

func (t *Track) Pan() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pan
}

// SetPan sets the stereo position, clamped to -1..1.
func (t *Track) SetPan(p float64) {
	t.mu.Lock()
	t.pan = min(max(p, -1), 1)
	t.mu.Unlock()
}

func (t *Track) QuantizeSettings() QuantizeSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.quantize
}

func (t *Track) SetQuantizeSettings(q QuantizeSettings) {
	t.mu.Lock()
	t.quantize = q
	t.mu.Unlock()
}

// AddClipRegion stores r under a new id and returns the id. Negative start,
// offset and length values are raised to zero.
func (t *Track) AddClipRegion(r ClipRegion) RegionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.ID = t.nextRegionID
	t.nextRegionID++
	t.insertRegion(r)
	return r.ID
}

// RestoreClipRegion stores r under its own id. It returns false if that id is
// already in use.
func (t *Track) RestoreClipRegion(r ClipRegion) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.ID <= 0 || t.regionIndex(r.ID) >= 0 {
		return false
	}
	if r.ID >= t.nextRegionID {
		t.nextRegionID = r.ID + 1
	}
	t.insertRegion(r)
	return true
}

// RemoveClipRegion deletes the region with id and returns it.
func (t *Track) RemoveClipRegion(id RegionID) (ClipRegion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.regionIndex(id)
	if i < 0 {
		return ClipRegion{}, false
	}
	r := t.regions[i]
	t.regions = slices.Delete(t.regions, i, i+1)
	return r, true
}

// ClipRegion returns the region with id.
func (t *Track) ClipRegion(id RegionID) (ClipRegion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.regionIndex(id); i >= 0 {
		return t.regions[i], true
	}
	return ClipRegion{}, false
}

// UpdateClipRegion lets fn modify the region with id in place. The id and
// clip handle cannot be changed.
func (t *Track) UpdateClipRegion(id RegionID, fn func(r *ClipRegion)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.regionIndex(id)
	if i < 0 {
		return false
	}
	r := t.regions[i]
	fn(&r)
	r.ID = id
	r.Clip = t.regions[i].Clip
	t.regions = slices.Delete(t.regions, i, i+1)
	t.insertRegion(r)
	return true
}

// ClipRegions returns a copy of the regions sorted by start tick.
func (t *Track) ClipRegions() []ClipRegion {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.regions)
}

// ClipRegionAt returns the first region covering tick.
func (t *Track) ClipRegionAt(tick int64) (ClipRegion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.regions {
		if r.Contains(tick) {
			return r, true
		}
	}
	return ClipRegion{}, false
}

// TrackState is the part of a track the sequencer reads every block.
type TrackState struct {
	Muted   bool
	Solo    bool
	Regions []ClipRegion
}

// Read runs fn with the track read-locked. Regions must not be retained.
func (t *Track) Read(fn func(s TrackState)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(TrackState{Muted: t.muted, Solo: t.solo, Regions: t.regions})
}

func (t *Track) regionIndex(id RegionID) int {
	for i := range t.regions {
		if t.regions[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Track) insertRegion(r ClipRegion) {
	r.StartTick = max(r.StartTick, 0)
	r.OffsetTick = max(r.OffsetTick, 0)
	r.LengthTick = max(r.LengthTick, 0)
	i, _ := slices.BinarySearchFunc(t.regions, r, func(a, x ClipRegion) int {
		if a.StartTick > x.StartTick {
			return 1
		}
		return -1
	})
	t.regions = slices.Insert(t.regions, i, r)
}

// removeRegionsFor drops every region referencing h. The caller holds the
// project lock.
func (t *Track) removeRegionsFor(h ClipHandle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := len(t.regions)
	t.regions = slices.DeleteFunc(t.regions, func(r ClipRegion) bool { return r.Clip == h })
	return before - len(t.regions)
}
