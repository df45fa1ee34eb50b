package edit

import (
	"fmt"

	"github.com/james-see/pianodaw/pkg/model"
)

// AddNote inserts one note. Redo puts the note back under the same id.
type AddNote struct {
	clip *model.Clip
	note model.Note
	id   model.NoteID
}

func NewAddNote(clip *model.Clip, pitch int, start, end int64, velocity int) *AddNote {
	return &AddNote{clip: clip, note: model.NewNote(pitch, start, end, velocity)}
}

func (c *AddNote) Execute() {
	if c.id == 0 {
		c.id = c.clip.AddNoteValue(c.note)
		c.note.ID = c.id
		return
	}
	c.clip.RestoreNote(c.note)
}

func (c *AddNote) Undo() { c.clip.RemoveNote(c.id) }

func (c *AddNote) Description() string { return "Add Note" }

// ID returns the id assigned by the first Execute.
func (c *AddNote) ID() model.NoteID { return c.id }

// RemoveNotes deletes notes by id. Ids that are already gone are ignored.
type RemoveNotes struct {
	clip    *model.Clip
	ids     []model.NoteID
	removed []model.Note
}

func NewRemoveNotes(clip *model.Clip, ids ...model.NoteID) *RemoveNotes {
	return &RemoveNotes{clip: clip, ids: ids}
}

// NewRemoveNote deletes a single note.
func NewRemoveNote(clip *model.Clip, id model.NoteID) *RemoveNotes {
	return NewRemoveNotes(clip, id)
}

func (c *RemoveNotes) Execute() {
	c.removed = c.removed[:0]
	c.clip.Edit(func(tx *model.ClipTx) {
		for _, id := range c.ids {
			if n := tx.Find(id); n != nil {
				c.removed = append(c.removed, *n)
				tx.Remove(id)
			}
		}
	})
}

func (c *RemoveNotes) Undo() {
	c.clip.Edit(func(tx *model.ClipTx) {
		for _, n := range c.removed {
			tx.Restore(n)
		}
	})
}

func (c *RemoveNotes) Description() string {
	if len(c.ids) == 1 {
		return "Delete Note"
	}
	return fmt.Sprintf("Delete %d Notes", len(c.ids))
}

// BulkAddNotes inserts a batch of notes as one edit.
type BulkAddNotes struct {
	clip  *model.Clip
	notes []model.Note
	added []model.Note
	desc  string
}

// NewBulkAddNotes adds copies of notes; their ids are ignored.
func NewBulkAddNotes(clip *model.Clip, notes []model.Note, desc string) *BulkAddNotes {
	if desc == "" {
		desc = "Add Notes"
	}
	return &BulkAddNotes{clip: clip, notes: notes, desc: desc}
}

func (c *BulkAddNotes) Execute() {
	if c.added != nil {
		c.clip.Edit(func(tx *model.ClipTx) {
			for _, n := range c.added {
				tx.Restore(n)
			}
		})
		return
	}
	c.added = make([]model.Note, 0, len(c.notes))
	c.clip.Edit(func(tx *model.ClipTx) {
		for _, n := range c.notes {
			c.added = append(c.added, tx.Add(n))
		}
	})
}

func (c *BulkAddNotes) Undo() {
	c.clip.Edit(func(tx *model.ClipTx) {
		for _, n := range c.added {
			tx.Remove(n.ID)
		}
	})
}

func (c *BulkAddNotes) Description() string { return c.desc }

// IDs returns the ids assigned by the first Execute.
func (c *BulkAddNotes) IDs() []model.NoteID {
	ids := make([]model.NoteID, len(c.added))
	for i, n := range c.added {
		ids[i] = n.ID
	}
	return ids
}
