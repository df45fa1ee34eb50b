package sequencer

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/timing"
)

// MinRecordedLength is the length given to a recorded note released at or
// before the tick it started.
const MinRecordedLength = timing.PPQ / 16

type held struct {
	start int64
	vel   uint8
}

// Recorder pairs incoming note-on and note-off messages into clip notes.
// It only mutates the clip through AddNote, RemoveNotesInRange and
// AddCCEvent.
type Recorder struct {
	mu        sync.Mutex
	clip      *model.Clip
	recording bool
	startTick int64
	open      map[uint8]held

	quantize bool
	grid     int64
	replace  bool

	logger *log.Logger
}

// NewRecorder returns an idle recorder. A nil logger discards output.
func NewRecorder(logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Recorder{open: make(map[uint8]held), logger: logger}
}

// Start records into clip from tick on. A nil clip is ignored.
func (r *Recorder) Start(clip *model.Clip, tick int64) {
	if clip == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clip = clip
	r.startTick = tick
	r.recording = true
	clear(r.open)
	r.logger.Info("recording started", "clip", clip.Name(), "tick", tick)
}

// Stop ends recording. Notes still held are discarded.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	if len(r.open) > 0 {
		r.logger.Debug("discarding held notes", "count", len(r.open))
	}
	clear(r.open)
	r.recording = false
	r.clip = nil
	r.logger.Info("recording stopped")
}

// Recording reports whether the recorder is armed.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// SetQuantizeInput snaps recorded starts and ends to grid when enabled.
func (r *Recorder) SetQuantizeInput(enabled bool, grid int64) {
	r.mu.Lock()
	r.quantize = enabled
	r.grid = grid
	r.mu.Unlock()
}

// SetReplaceMode makes each recorded note remove same-pitch notes it overlaps.
func (r *Recorder) SetReplaceMode(replace bool) {
	r.mu.Lock()
	r.replace = replace
	r.mu.Unlock()
}

// Process records msgs as happening at tick. Note-offs without a matching
// note-on are ignored.
func (r *Recorder) Process(msgs []midi.Message, tick int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.clip == nil {
		return
	}
	for _, msg := range msgs {
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			r.open[key] = held{start: r.snap(tick), vel: vel}
		case msg.GetNoteEnd(&ch, &key):
			h, ok := r.open[key]
			if !ok {
				continue
			}
			delete(r.open, key)
			end := r.snap(tick)
			if end <= h.start {
				end = h.start + MinRecordedLength
			}
			if r.replace {
				r.clip.RemoveNotesInRange(int(key), int(key), h.start, end)
			}
			r.clip.AddNote(int(key), h.start, end, int(h.vel))
		case msg.GetControlChange(&ch, &key, &vel):
			r.clip.AddCCEvent(model.NewCCEvent(int(key), tick, int(vel)))
		}
	}
}

// ClearRegion removes every note overlapping [start, end) from the target clip.
func (r *Recorder) ClearRegion(start, end int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip != nil {
		r.clip.RemoveNotesInRange(0, 127, start, end)
	}
}

func (r *Recorder) snap(tick int64) int64 {
	if !r.quantize || r.grid <= 0 {
		return tick
	}
	return timing.SnapToGrid(tick, r.grid)
}
