// Package edit implements every change to clips, tracks and projects as a
// reversible Command, plus the bounded undo/redo history that runs them.
package edit

import (
	"sync"
)

// DefaultMaxUndo is the history depth used when none is given.
const DefaultMaxUndo = 100

// Command is a reversible edit. Execute runs the edit the first time and
// again on redo; Undo restores the state from before Execute.
type Command interface {
	Execute()
	Undo()
	Description() string
}

// UndoStack runs commands and keeps bounded undo and redo histories. When
// the undo history is full the oldest command is dropped.
type UndoStack struct {
	mu       sync.Mutex
	undo     []Command
	redo     []Command
	max      int
	onChange func()
}

// NewUndoStack returns a history holding up to maxSize commands.
func NewUndoStack(maxSize int) *UndoStack {
	if maxSize <= 0 {
		maxSize = DefaultMaxUndo
	}
	return &UndoStack{max: maxSize}
}

// OnChange registers fn to run after every change to the history.
func (s *UndoStack) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Execute runs cmd, clears the redo history and records cmd.
func (s *UndoStack) Execute(cmd Command) {
	s.mu.Lock()
	cmd.Execute()
	clear(s.redo)
	s.redo = s.redo[:0]
	s.undo = append(s.undo, cmd)
	if len(s.undo) > s.max {
		n := copy(s.undo, s.undo[len(s.undo)-s.max:])
		clear(s.undo[n:])
		s.undo = s.undo[:n]
	}
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
}

// Undo reverts the most recent command. It returns false when there is
// nothing to undo.
func (s *UndoStack) Undo() bool {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return false
	}
	cmd := s.undo[len(s.undo)-1]
	s.undo[len(s.undo)-1] = nil
	s.undo = s.undo[:len(s.undo)-1]
	cmd.Undo()
	s.redo = append(s.redo, cmd)
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
	return true
}

// Redo re-executes the most recently undone command. It returns false when
// there is nothing to redo.
func (s *UndoStack) Redo() bool {
	s.mu.Lock()
	if len(s.redo) == 0 {
		s.mu.Unlock()
		return false
	}
	cmd := s.redo[len(s.redo)-1]
	s.redo[len(s.redo)-1] = nil
	s.redo = s.redo[:len(s.redo)-1]
	cmd.Execute()
	s.undo = append(s.undo, cmd)
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
	return true
}

func (s *UndoStack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *UndoStack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// UndoDescription names the command Undo would revert, or "".
func (s *UndoStack) UndoDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return ""
	}
	return s.undo[len(s.undo)-1].Description()
}

// RedoDescription names the command Redo would re-run, or "".
func (s *UndoStack) RedoDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return ""
	}
	return s.redo[len(s.redo)-1].Description()
}

// Len returns the sizes of the undo and redo histories.
func (s *UndoStack) Len() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo), len(s.redo)
}

// History returns the undo descriptions, oldest first.
func (s *UndoStack) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.undo))
	for i, c := range s.undo {
		out[i] = c.Description()
	}
	return out
}

// Clear drops both histories.
func (s *UndoStack) Clear() {
	s.mu.Lock()
	s.undo = nil
	s.redo = nil
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}

// Batch runs several commands as one history entry. Undo reverts them in
// reverse order.
type Batch struct {
	desc string
	cmds []Command
}

func NewBatch(desc string, cmds ...Command) *Batch {
	return &Batch{desc: desc, cmds: cmds}
}

func (b *Batch) Execute() {
	for _, c := range b.cmds {
		c.Execute()
	}
}

func (b *Batch) Undo() {
	for i := len(b.cmds) - 1; i >= 0; i-- {
		b.cmds[i].Undo()
	}
}

func (b *Batch) Description() string { return b.desc }
