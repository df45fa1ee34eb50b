package model

import "fmt"

// ClipHandle refers to a clip in a project's pool. A handle goes stale when
// its clip is removed; Project.Clip reports stale handles as not found.
// The zero handle never refers to a clip.
type ClipHandle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero handle.
func (h ClipHandle) IsZero() bool { return h.Generation == 0 }

func (h ClipHandle) String() string {
	return fmt.Sprintf("clip#%d.%d", h.Index, h.Generation)
}

// RegionID identifies a region within its track.
type RegionID int

// ClipRegion places a clip on a track. OffsetTick trims into the clip and
// LengthTick is the visible length on the timeline.
type ClipRegion struct {
	ID         RegionID
	Clip       ClipHandle
	StartTick  int64
	OffsetTick int64
	LengthTick int64
	Muted      bool
}

// EndTick returns the timeline tick where the region stops.
func (r ClipRegion) EndTick() int64 { return r.StartTick + r.LengthTick }

// Contains reports whether the timeline tick lies inside the region.
func (r ClipRegion) Contains(tick int64) bool {
	return tick >= r.StartTick && tick < r.EndTick()
}

// ToTimeline converts a tick inside the clip to a timeline tick.
func (r ClipRegion) ToTimeline(clipTick int64) int64 {
	return r.StartTick + clipTick - r.OffsetTick
}
