// Package session bundles an open project with its undo history, transport
// and preferences. Every surface (CLI, TUI, HTTP) edits through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/pianodaw/pkg/config"
	"github.com/james-see/pianodaw/pkg/edit"
	"github.com/james-see/pianodaw/pkg/midifile"
	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/quantize"
	"github.com/james-see/pianodaw/pkg/sequencer"
	"github.com/james-see/pianodaw/pkg/timing"
	"github.com/james-see/pianodaw/pkg/transport"
)

var (
	ErrNoClip     = errors.New("no such clip")
	ErrNoTrack    = errors.New("no such track")
	ErrNoFilePath = errors.New("project has no file path")
)

// Session is safe for concurrent use. The project pointer changes only on
// Open and Reset, so callers should fetch it per operation.
type Session struct {
	mu        sync.RWMutex
	project   *model.Project
	history   *edit.UndoStack
	transport *transport.Transport
	cfg       *config.Config
	logger    *log.Logger
}

// New returns a session holding an empty project with one MIDI track and one
// clip placed on it. Nil cfg uses defaults; nil logger discards output.
func New(cfg *config.Config, logger *log.Logger) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Session{
		history:   edit.NewUndoStack(cfg.UndoDepth),
		transport: transport.New(logger.WithPrefix("transport")),
		cfg:       cfg,
		logger:    logger,
	}
	s.install(NewProject("Untitled", cfg.Tempo))
	return s
}

// NewProject returns a project with a single MIDI track playing a single
// empty clip for the default project length.
func NewProject(name string, tempo float64) *model.Project {
	p := model.NewProject(name)
	if tempo > 0 {
		p.SetTempo(tempo)
	}
	h, _ := p.AddClip("Clip 1")
	t := p.AddTrack("Track 1", model.TrackMIDI)
	t.AddClipRegion(model.ClipRegion{Clip: h, LengthTick: p.Length()})
	p.SetModified(false)
	return p
}

// install swaps in p and syncs the transport to it.
func (s *Session) install(p *model.Project) {
	s.mu.Lock()
	s.project = p
	s.mu.Unlock()
	s.history.Clear()
	s.transport.Stop()
	s.transport.SetPosition(0)
	s.transport.SetTempo(p.Tempo())
	if start, end := p.LoopRange(); end > start {
		if err := s.transport.SetLoopRange(start, end); err != nil {
			s.logger.Warn("ignoring project loop range", "err", err)
		}
	}
}

func (s *Session) Project() *model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

func (s *Session) History() *edit.UndoStack { return s.history }

func (s *Session) Transport() *transport.Transport { return s.transport }

func (s *Session) Config() *config.Config { return s.cfg }

func (s *Session) Logger() *log.Logger { return s.logger }

// Reset replaces the project with a fresh one.
func (s *Session) Reset(name string) {
	s.install(NewProject(name, s.cfg.Tempo))
	s.logger.Info("new project", "name", name)
}

// Open loads the project file at path, replacing the current project and
// clearing the undo history.
func (s *Session) Open(path string) error {
	p, err := model.OpenProject(path)
	if err != nil {
		return err
	}
	s.install(p)
	s.cfg.LastProject = path
	info := p.Info()
	s.logger.Info("opened project", "path", path, "tracks", info.NumTracks, "clips", info.NumClips)
	return nil
}

// Save writes the project to the file it was opened from or last saved to.
func (s *Session) Save() error {
	p := s.Project()
	path := p.FilePath()
	if path == "" {
		return ErrNoFilePath
	}
	return s.SaveAs(path)
}

// SaveAs writes the project to path in the format its extension names.
func (s *Session) SaveAs(path string) error {
	p := s.Project()
	if err := p.SaveFile(path); err != nil {
		return err
	}
	s.cfg.LastProject = path
	s.logger.Info("saved project", "path", path)
	return nil
}

// Do runs cmd through the undo history and marks the project modified.
func (s *Session) Do(cmd edit.Command) {
	if cmd == nil {
		return
	}
	s.history.Execute(cmd)
	s.Project().SetModified(true)
	s.logger.Debug("edit", "cmd", cmd.Description())
}

// Undo reverts the last command. It returns false when there is none.
func (s *Session) Undo() bool {
	desc := s.history.UndoDescription()
	if !s.history.Undo() {
		return false
	}
	s.Project().SetModified(true)
	s.logger.Debug("undo", "cmd", desc)
	return true
}

// Redo re-applies the last undone command. It returns false when there is
// none.
func (s *Session) Redo() bool {
	desc := s.history.RedoDescription()
	if !s.history.Redo() {
		return false
	}
	s.Project().SetModified(true)
	s.logger.Debug("redo", "cmd", desc)
	return true
}

// SetTempo changes project and transport tempo as one edit.
func (s *Session) SetTempo(bpm float64) {
	s.Do(edit.NewSetTempo(bpm, s.Project(), s.transport))
}

// ClipByNumber returns the n-th clip of the pool, counting from 1 in the
// order clips are saved.
func (s *Session) ClipByNumber(n int) (model.ClipHandle, *model.Clip, error) {
	p := s.Project()
	handles := p.ClipHandles()
	if n < 1 || n > len(handles) {
		return model.ClipHandle{}, nil, fmt.Errorf("%w: %d of %d", ErrNoClip, n, len(handles))
	}
	h := handles[n-1]
	c, ok := p.Clip(h)
	if !ok {
		return h, nil, fmt.Errorf("%w: %d", ErrNoClip, n)
	}
	return h, c, nil
}

// TrackByNumber returns the n-th track, counting from 1.
func (s *Session) TrackByNumber(n int) (*model.Track, error) {
	t, ok := s.Project().Track(n - 1)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoTrack, n)
	}
	return t, nil
}

// QuantizeParams returns the quantize settings from the config.
func (s *Session) QuantizeParams() quantize.Params {
	p := quantize.DefaultParams()
	p.GridTicks = s.cfg.GridTicks()
	p.Strength = s.cfg.Strength
	p.Swing = s.cfg.Swing
	return p
}

// NoteIDs returns the ids of every note in c.
func NoteIDs(c *model.Clip) []model.NoteID {
	notes := c.Notes()
	ids := make([]model.NoteID, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

// ExportOptions returns MIDI export settings from the project and config.
// The project tempo and meter go out as a tempo map starting at tick 0.
func (s *Session) ExportOptions() midifile.Options {
	info := s.Project().Info()
	return midifile.Options{
		PPQ:         uint16(s.cfg.ExportPPQ),
		TempoBPM:    info.Tempo,
		Numerator:   uint8(info.Numerator),
		Denominator: uint8(info.Denominator),
		Tempo:       timing.NewTempoMap(info.Tempo, info.Numerator, info.Denominator),
	}
}

// ExportClip writes clip n as a MIDI file.
func (s *Session) ExportClip(n int, path string) error {
	_, c, err := s.ClipByNumber(n)
	if err != nil {
		return err
	}
	if err := midifile.ExportFile(path, c, s.ExportOptions()); err != nil {
		return err
	}
	s.logger.Info("exported clip", "clip", n, "path", path)
	return nil
}

// ImportMIDI reads a MIDI file into a new clip on a new track. The whole
// import is one undoable edit.
func (s *Session) ImportMIDI(path string) (model.ClipHandle, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c := model.NewClip(name)
	h, err := midifile.ImportFile(path, c)
	if err != nil {
		return model.ClipHandle{}, err
	}
	cmd := edit.NewImportClip(s.Project(), c, name)
	s.Do(cmd)
	s.logger.Info("imported MIDI", "path", path, "notes", h.Notes, "tempo", h.TempoBPM)
	return cmd.Handle(), nil
}

// Sequencer returns a playback engine over the current project.
func (s *Session) Sequencer() *sequencer.Engine {
	return sequencer.New(s.Project(), s.transport, s.logger.WithPrefix("sequencer"))
}

// Record arms eng's recorder on clip n at the playhead, snapping input to
// the configured grid. With replace set recorded notes overwrite the notes
// they overlap, and when the transport loops the loop range is cleared
// first.
func (s *Session) Record(eng *sequencer.Engine, n int, replace bool) error {
	_, clip, err := s.ClipByNumber(n)
	if err != nil {
		return err
	}
	rec := eng.Recorder()
	rec.SetQuantizeInput(true, s.cfg.GridTicks())
	rec.SetReplaceMode(replace)
	rec.Start(clip, s.transport.Position())
	if replace && s.transport.Looping() {
		lr := s.transport.LoopRange()
		rec.ClearRegion(lr.Start, lr.End)
	}
	return nil
}

// ClipTick converts a timeline tick to a tick inside clip h, through the
// first region of h that covers it. Without one the tick is returned as is.
func (s *Session) ClipTick(h model.ClipHandle, tick int64) int64 {
	p := s.Project()
	for i := range p.NumTracks() {
		t, ok := p.Track(i)
		if !ok {
			continue
		}
		if r, ok := t.ClipRegionAt(tick); ok && r.Clip == h {
			return tick - r.StartTick + r.OffsetTick
		}
	}
	return tick
}

// Play clocks the transport and runs eng until ctx is done, passing its
// output to send. A nil eng plays the current project.
func (s *Session) Play(ctx context.Context, eng *sequencer.Engine, send func(midi.Message) error) error {
	if eng == nil {
		eng = s.Sequencer()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	clock := make(chan error, 1)
	go func() { clock <- s.transport.Run(ctx, time.Millisecond) }()
	err := eng.Run(ctx, sequencer.DefaultBlockInterval, send)
	cancel()
	<-clock
	return err
}
