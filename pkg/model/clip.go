package model

import (
	"slices"
	"sync"
)

// Clip is a named fragment of notes and controller events. Notes stay sorted
// by (StartTick, Pitch) and controller events by (Tick, CC).
type Clip struct {
	mu         sync.RWMutex
	name       string
	notes      []Note
	ccEvents   []CCEvent
	nextNoteID NoteID
}

// NewClip returns an empty clip.
func NewClip(name string) *Clip {
	return &Clip{name: name, nextNoteID: 1}
}

func (c *Clip) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Clip) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// AddNote inserts a validated note and returns its new id.
func (c *Clip) AddNote(pitch int, start, end int64, velocity int) NoteID {
	return c.AddNoteValue(NewNote(pitch, start, end, velocity))
}

// AddNoteValue inserts n under a freshly allocated id. The note is validated
// as NewNote would.
func (c *Clip) AddNoteValue(n Note) NoteID {
	n = validated(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	n.ID = c.nextNoteID
	c.nextNoteID++
	c.insertNote(n)
	return n.ID
}

// RestoreNote inserts n keeping its id. It returns false if the clip already
// holds a note with that id or the id is not positive. The id counter only
// ever moves forward.
func (c *Clip) RestoreNote(n Note) bool {
	if n.ID <= 0 {
		return false
	}
	id := n.ID
	n = validated(n)
	n.ID = id
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(id) >= 0 {
		return false
	}
	if id >= c.nextNoteID {
		c.nextNoteID = id + 1
	}
	c.insertNote(n)
	return true
}

// RemoveNote deletes the note with id and reports whether it existed.
func (c *Clip) RemoveNote(id NoteID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.notes = slices.Delete(c.notes, i, i+1)
	return true
}

// Note returns a copy of the note with id.
func (c *Clip) Note(id NoteID) (Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.notes[i], true
	}
	return Note{}, false
}

// Notes returns a copy of every note in order.
func (c *Clip) Notes() []Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.notes)
}

func (c *Clip) NumNotes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notes)
}

// NextNoteID returns the id the next AddNote call will assign.
func (c *Clip) NextNoteID() NoteID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextNoteID
}

// NotesInRange returns copies of the notes overlapping [start, end).
func (c *Clip) NotesInRange(start, end int64) []Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Note
	for _, n := range c.notes {
		if n.StartTick >= end {
			break
		}
		if n.Overlaps(start, end) {
			out = append(out, n)
		}
	}
	return out
}

// RemoveNotesInRange deletes notes with pitch in [minPitch, maxPitch] that
// overlap [start, end) and returns what was removed.
func (c *Clip) RemoveNotesInRange(minPitch, maxPitch int, start, end int64) []Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []Note
	c.notes = slices.DeleteFunc(c.notes, func(n Note) bool {
		if n.Pitch >= minPitch && n.Pitch <= maxPitch && n.Overlaps(start, end) {
			removed = append(removed, n)
			return true
		}
		return false
	})
	return removed
}

// Edit runs fn with the clip write-locked. Pointers returned by the ClipTx
// are only valid inside fn and only until the next Add or Remove made through
// the same ClipTx. Notes and events are re-sorted when fn returns.
func (c *Clip) Edit(fn func(tx *ClipTx)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&ClipTx{c: c})
	c.sortNotes()
	c.sortCC()
}

// Read runs fn with the clip read-locked. The slices must not be retained or
// modified.
func (c *Clip) Read(fn func(notes []Note, events []CCEvent)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.notes, c.ccEvents)
}

// AddCCEvent inserts ev. An existing event at the same tick and controller is
// replaced and returned.
func (c *Clip) AddCCEvent(ev CCEvent) (prev CCEvent, replaced bool) {
	ev = NewCCEvent(ev.CC, ev.Tick, ev.Value)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putCC(ev)
}

// RemoveCCEvents deletes the events at tick for controller cc, or for every
// controller when cc is negative, and returns them.
func (c *Clip) RemoveCCEvents(tick int64, cc int) []CCEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []CCEvent
	c.ccEvents = slices.DeleteFunc(c.ccEvents, func(e CCEvent) bool {
		if e.Tick == tick && (cc < 0 || e.CC == cc) {
			removed = append(removed, e)
			return true
		}
		return false
	})
	return removed
}

// CCEventsInRange returns events in [start, end) for controller cc, or every
// controller when cc is negative.
func (c *Clip) CCEventsInRange(start, end int64, cc int) []CCEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []CCEvent
	for _, e := range c.ccEvents {
		if e.Tick >= end {
			break
		}
		if e.Tick >= start && (cc < 0 || e.CC == cc) {
			out = append(out, e)
		}
	}
	return out
}

// CCEvents returns a copy of every controller event in order.
func (c *Clip) CCEvents() []CCEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.ccEvents)
}

// TotalDuration returns the end tick of the latest-ending note.
func (c *Clip) TotalDuration() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var end int64
	for _, n := range c.notes {
		end = max(end, n.EndTick)
	}
	return end
}

// Clear removes every note and event. The id counter is kept.
func (c *Clip) Clear() {
	c.mu.Lock()
	c.notes = nil
	c.ccEvents = nil
	c.mu.Unlock()
}

// Clone returns an independent copy with the same note ids.
func (c *Clip) Clone(name string) *Clip {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Clip{
		name:       name,
		notes:      slices.Clone(c.notes),
		ccEvents:   slices.Clone(c.ccEvents),
		nextNoteID: c.nextNoteID,
	}
}

func (c *Clip) indexOf(id NoteID) int {
	for i := range c.notes {
		if c.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Clip) insertNote(n Note) {
	// insert after equal keys so equal notes keep insertion order
	i, _ := slices.BinarySearchFunc(c.notes, n, func(a, t Note) int {
		if t.Less(a) {
			return 1
		}
		return -1
	})
	c.notes = slices.Insert(c.notes, i, n)
}

func (c *Clip) putCC(ev CCEvent) (CCEvent, bool) {
	i, found := slices.BinarySearchFunc(c.ccEvents, ev, compareCC)
	if found {
		prev := c.ccEvents[i]
		c.ccEvents[i] = ev
		return prev, true
	}
	c.ccEvents = slices.Insert(c.ccEvents, i, ev)
	return CCEvent{}, false
}

func (c *Clip) sortNotes() {
	slices.SortStableFunc(c.notes, compareNotes)
}

func (c *Clip) sortCC() {
	slices.SortStableFunc(c.ccEvents, compareCC)
	c.ccEvents = slices.CompactFunc(c.ccEvents, func(a, b CCEvent) bool {
		return a.Tick == b.Tick && a.CC == b.CC
	})
}

func compareNotes(a, b Note) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

func compareCC(a, b CCEvent) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

func validated(n Note) Note {
	out := NewNote(n.Pitch, n.StartTick, n.EndTick, n.Velocity)
	out.ID = n.ID
	return out
}

// ClipTx gives mutable access to a clip's contents inside Clip.Edit.
type ClipTx struct {
	c *Clip
}

// Find returns the note with id, or nil.
func (tx *ClipTx) Find(id NoteID) *Note {
	if i := tx.c.indexOf(id); i >= 0 {
		return &tx.c.notes[i]
	}
	return nil
}

// Each calls fn for every note in order.
func (tx *ClipTx) Each(fn func(n *Note)) {
	for i := range tx.c.notes {
		fn(&tx.c.notes[i])
	}
}

// Remove deletes the note with id.
func (tx *ClipTx) Remove(id NoteID) bool {
	i := tx.c.indexOf(id)
	if i < 0 {
		return false
	}
	tx.c.notes = slices.Delete(tx.c.notes, i, i+1)
	return true
}

// Add inserts n under a freshly allocated id and returns the stored note.
func (tx *ClipTx) Add(n Note) Note {
	n = validated(n)
	n.ID = tx.c.nextNoteID
	tx.c.nextNoteID++
	tx.c.notes = append(tx.c.notes, n)
	return n
}

// Restore inserts n keeping its id, as Clip.RestoreNote does.
func (tx *ClipTx) Restore(n Note) bool {
	if n.ID <= 0 || tx.c.indexOf(n.ID) >= 0 {
		return false
	}
	id := n.ID
	n = validated(n)
	n.ID = id
	if id >= tx.c.nextNoteID {
		tx.c.nextNoteID = id + 1
	}
	tx.c.notes = append(tx.c.notes, n)
	return true
}

// CCEvents returns the clip's controller events for in-place modification.
// Events that end up sharing a (Tick, CC) pair are merged when Edit returns.
func (tx *ClipTx) CCEvents() []CCEvent {
	return tx.c.ccEvents
}

// SetCCEvents replaces every controller event.
func (tx *ClipTx) SetCCEvents(evs []CCEvent) {
	tx.c.ccEvents = slices.Clone(evs)
}

// PutCC inserts or replaces a controller event.
func (tx *ClipTx) PutCC(ev CCEvent) (CCEvent, bool) {
	tx.c.sortCC()
	return tx.c.putCC(NewCCEvent(ev.CC, ev.Tick, ev.Value))
}

// RemoveCC deletes the event at tick for controller cc.
func (tx *ClipTx) RemoveCC(tick int64, cc int) bool {
	for i, e := range tx.c.ccEvents {
		if e.Tick == tick && e.CC == cc {
			tx.c.ccEvents = slices.Delete(tx.c.ccEvents, i, i+1)
			return true
		}
	}
	return false
}
