package model

import (
	"slices"
	"sync"

	"github.com/james-see/pianodaw/pkg/timing"
)

const (
	MinTempo = 20.0
	MaxTempo = 999.0

	// DefaultLength is 32 bars of 4/4.
	DefaultLength = timing.PPQ * 4 * 32
	// DefaultLoopEnd is the end of the default four-bar loop.
	DefaultLoopEnd = timing.PPQ * 16
)

type clipSlot struct {
	clip *Clip
	gen  uint32
}

// Project owns the track list and the clip pool. Clips live in a slot map and
// are referenced by generation-checked ClipHandles.
type Project struct {
	mu        sync.RWMutex
	name      string
	tempo     float64
	num, den  int
	length    int64
	loopStart int64
	loopEnd   int64
	filePath  string
	modified  bool
	tracks    []*Track
	slots     []clipSlot
	free      []uint32
}

// NewProject returns an empty 4/4 project at 120 BPM.
func NewProject(name string) *Project {
	if name == "" {
		name = "Untitled"
	}
	return &Project{
		name:    name,
		tempo:   120,
		num:     4,
		den:     4,
		length:  DefaultLength,
		loopEnd: DefaultLoopEnd,
	}
}

// Info is a consistent copy of the project's scalar settings.
type Info struct {
	Name        string
	Tempo       float64
	Numerator   int
	Denominator int
	Length      int64
	LoopStart   int64
	LoopEnd     int64
	FilePath    string
	Modified    bool
	NumTracks   int
	NumClips    int
}

func (p *Project) Info() Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Info{
		Name:        p.name,
		Tempo:       p.tempo,
		Numerator:   p.num,
		Denominator: p.den,
		Length:      p.length,
		LoopStart:   p.loopStart,
		LoopEnd:     p.loopEnd,
		FilePath:    p.filePath,
		Modified:    p.modified,
		NumTracks:   len(p.tracks),
		NumClips:    p.numClips(),
	}
}

func (p *Project) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Project) SetName(name string) {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
}

func (p *Project) Tempo() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tempo
}

// SetTempo sets the tempo clamped to MinTempo..MaxTempo.
func (p *Project) SetTempo(bpm float64) {
	p.mu.Lock()
	p.tempo = clampTempo(bpm)
	p.mu.Unlock()
}

func clampTempo(bpm float64) float64 {
	return min(max(bpm, MinTempo), MaxTempo)
}

// TimeSignature returns numerator and denominator.
func (p *Project) TimeSignature() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.num, p.den
}

// SetTimeSignature sets the meter; both parts are clamped to 1..32.
func (p *Project) SetTimeSignature(numerator, denominator int) {
	p.mu.Lock()
	p.num = min(max(numerator, 1), 32)
	p.den = min(max(denominator, 1), 32)
	p.mu.Unlock()
}

func (p *Project) Length() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.length
}

func (p *Project) SetLength(ticks int64) {
	p.mu.Lock()
	p.length = max(ticks, 0)
	p.mu.Unlock()
}

// LoopRange returns the loop start and end ticks.
func (p *Project) LoopRange() (int64, int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loopStart, p.loopEnd
}

// SetLoopRange stores the loop with start raised to zero and end raised to start.
func (p *Project) SetLoopRange(start, end int64) {
	p.mu.Lock()
	p.loopStart = max(start, 0)
	p.loopEnd = max(end, p.loopStart)
	p.modified = true
	p.mu.Unlock()
}

func (p *Project) FilePath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filePath
}

func (p *Project) SetFilePath(path string) {
	p.mu.Lock()
	p.filePath = path
	p.mu.Unlock()
}

func (p *Project) Modified() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modified
}

func (p *Project) SetModified(m bool) {
	p.mu.Lock()
	p.modified = m
	p.mu.Unlock()
}

// AddTrack appends a new track and returns it.
func (p *Project) AddTrack(name string, typ TrackType) *Track {
	t := NewTrack(name, typ)
	p.mu.Lock()
	p.tracks = append(p.tracks, t)
	p.mu.Unlock()
	return t
}

// InsertTrack places t at index i, clamped to the list bounds.
func (p *Project) InsertTrack(i int, t *Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i = min(max(i, 0), len(p.tracks))
	p.tracks = slices.Insert(p.tracks, i, t)
}

// RemoveTrack removes and returns the track at index i.
func (p *Project) RemoveTrack(i int) (*Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.tracks) {
		return nil, false
	}
	t := p.tracks[i]
	p.tracks = slices.Delete(p.tracks, i, i+1)
	return t, true
}

// Track returns the track at index i.
func (p *Project) Track(i int) (*Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.tracks) {
		return nil, false
	}
	return p.tracks[i], true
}

// TrackIndex returns the position of t, or -1.
func (p *Project) TrackIndex(t *Track) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Index(p.tracks, t)
}

// Tracks returns a copy of the track list.
func (p *Project) Tracks() []*Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.tracks)
}

func (p *Project) NumTracks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// AddClip creates an empty clip in the pool.
func (p *Project) AddClip(name string) (ClipHandle, *Clip) {
	c := NewClip(name)
	return p.AttachClip(c), c
}

// AttachClip moves c into the pool and returns its handle.
func (p *Project) AttachClip(c *Clip) ClipHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attach(c)
}

func (p *Project) attach(c *Clip) ClipHandle {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[idx].clip = c
		return ClipHandle{Index: idx, Generation: p.slots[idx].gen}
	}
	p.slots = append(p.slots, clipSlot{clip: c, gen: 1})
	return ClipHandle{Index: uint32(len(p.slots) - 1), Generation: 1}
}

// Clip resolves h. Stale and zero handles are reported as not found.
func (p *Project) Clip(h ClipHandle) (*Clip, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := p.lookup(h)
	return c, c != nil
}

func (p *Project) lookup(h ClipHandle) *Clip {
	if h.IsZero() || int(h.Index) >= len(p.slots) {
		return nil
	}
	s := p.slots[h.Index]
	if s.gen != h.Generation {
		return nil
	}
	return s.clip
}

// RemoveClip drops the clip from the pool, invalidates h and removes every
// region on every track that referenced it. It returns the number of regions
// removed.
func (p *Project) RemoveClip(h ClipHandle) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lookup(h) == nil {
		return 0, false
	}
	p.release(h.Index)
	removed := 0
	for _, t := range p.tracks {
		removed += t.removeRegionsFor(h)
	}
	return removed, true
}

func (p *Project) release(idx uint32) {
	p.slots[idx].clip = nil
	p.slots[idx].gen++
	if p.slots[idx].gen == 0 {
		p.slots[idx].gen = 1
	}
	p.free = append(p.free, idx)
}

// ClipHandles returns the handles of every live clip in pool order.
func (p *Project) ClipHandles() []ClipHandle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handles()
}

func (p *Project) handles() []ClipHandle {
	var hs []ClipHandle
	for i, s := range p.slots {
		if s.clip != nil {
			hs = append(hs, ClipHandle{Index: uint32(i), Generation: s.gen})
		}
	}
	return hs
}

func (p *Project) NumClips() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.numClips()
}

func (p *Project) numClips() int {
	return len(p.slots) - len(p.free)
}

// BlockView is the project as seen by the sequencer for one block.
type BlockView struct {
	Tempo  float64
	Tracks []*Track
	p      *Project
}

// Clip resolves h without locking; only valid inside ReadBlock.
func (v BlockView) Clip(h ClipHandle) *Clip {
	return v.p.lookup(h)
}

// ReadBlock runs fn with the project read-locked. Track and clip locks are
// taken by fn as it descends.
func (p *Project) ReadBlock(fn func(v BlockView)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(BlockView{Tempo: p.tempo, Tracks: p.tracks, p: p})
}
