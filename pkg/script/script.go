// Package script turns JSON edit requests, such as those produced by a
// language model, into undoable edit commands on a clip.
//
// A request looks like
//
//	{"action": "smart_quantize", "reasoning": "...", "grid": "1/16",
//	 "qStrength": 80, "swing": 55, "selection": {"scope": "all"}}
//
// or
//
//	{"action": "generate_progression",
//	 "composition": {"progression": ["C", "Am", "F", "G"]},
//	 "selection": {"startTick": 3840}}
package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/james-see/pianodaw/pkg/edit"
	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/quantize"
	"github.com/james-see/pianodaw/pkg/theory"
	"github.com/james-see/pianodaw/pkg/timing"
)

// Actions understood by Interpret.
const (
	ActionQuantize    = "smart_quantize"
	ActionProgression = "generate_progression"
	ActionMelody      = "generate_melody"
)

const (
	// ChordTicks is the time each chord of a progression takes.
	ChordTicks = timing.PPQ * 2
	// ChordGate is the fraction of ChordTicks a chord sounds for.
	ChordGate = 0.9

	defaultNoteVelocity  = 0.8
	defaultChordVelocity = 0.7
	defaultNoteDuration  = timing.PPQ / 2
	defaultRangeEnd      = timing.PPQ * 4
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNotObject     = errors.New("request is not a JSON object")
)

// Result is an interpreted request. Command is nil when the request
// selected nothing to change.
type Result struct {
	Action    string
	Reasoning string
	Command   edit.Command
}

type request struct {
	Action      string       `json:"action"`
	Reasoning   string       `json:"reasoning"`
	Grid        string       `json:"grid"`
	QStrength   *float64     `json:"qStrength"`
	Swing       *float64     `json:"swing"`
	Mode        string       `json:"mode"`
	Selection   *selection   `json:"selection"`
	Composition *composition `json:"composition"`
}

type selection struct {
	Scope     string `json:"scope"`
	StartTick *int64 `json:"startTick"`
	EndTick   *int64 `json:"endTick"`
}

type composition struct {
	Notes       []noteSpec `json:"notes"`
	Progression []string   `json:"progression"`
}

type noteSpec struct {
	Pitch     *int     `json:"pitch"`
	StartTick int64    `json:"startTick"`
	Duration  *int64   `json:"duration"`
	Velocity  *float64 `json:"velocity"`
}

// Interpret parses text and builds the command it asks for. The command is
// not executed.
func Interpret(clip *model.Clip, text []byte) (Result, error) {
	var req request
	body := stripFence(text)
	if len(body) == 0 || body[0] != '{' {
		return Result{}, ErrNotObject
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return Result{}, fmt.Errorf("failed to parse request: %w", err)
	}
	res := Result{Action: req.Action, Reasoning: req.Reasoning}

	switch req.Action {
	case ActionQuantize:
		res.Command = quantizeCommand(clip, req)
	case ActionProgression, ActionMelody:
		notes, err := composeNotes(req)
		if err != nil {
			return res, err
		}
		if len(notes) > 0 {
			res.Command = edit.NewBulkAddNotes(clip, notes, description(req.Action))
		}
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	return res, nil
}

func description(action string) string {
	if action == ActionMelody {
		return "Generate Melody"
	}
	return "Generate Progression"
}

// stripFence removes a surrounding ```json ... ``` block.
func stripFence(text []byte) []byte {
	body := bytes.TrimSpace(text)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	body = bytes.TrimPrefix(body, []byte("json"))
	if i := bytes.LastIndex(body, []byte("```")); i >= 0 {
		body = body[:i]
	}
	return bytes.TrimSpace(body)
}

// quantizeParams reads the quantize fields of a request. Strength and swing
// are percentages; an unknown grid falls back to 1/16.
func quantizeParams(req request) quantize.Params {
	p := quantize.DefaultParams()
	if g, err := timing.ParseGridSize(req.Grid); err == nil {
		p.GridTicks = g.Ticks()
	}
	if req.QStrength != nil {
		p.Strength = clamp01(*req.QStrength / 100)
	}
	if req.Swing != nil {
		p.Swing = clamp01(*req.Swing / 100)
	}
	switch req.Mode {
	case "", "auto", "preserve_roll", "tight_chords":
		p.SmartChord = true
	}
	return p
}

func quantizeCommand(clip *model.Clip, req request) edit.Command {
	var ids []model.NoteID
	inRange := func(model.Note) bool { return true }
	if sel := req.Selection; sel != nil && sel.Scope == "time_range" {
		start, end := int64(0), int64(defaultRangeEnd)
		if sel.StartTick != nil {
			start = *sel.StartTick
		}
		if sel.EndTick != nil {
			end = *sel.EndTick
		}
		inRange = func(n model.Note) bool { return n.StartTick >= start && n.StartTick < end }
	}
	for _, n := range clip.Notes() {
		if inRange(n) {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return edit.NewQuantize(clip, ids, quantizeParams(req))
}

func composeNotes(req request) ([]model.Note, error) {
	comp := req.Composition
	if comp == nil {
		return nil, nil
	}
	if len(comp.Notes) > 0 {
		notes := make([]model.Note, 0, len(comp.Notes))
		for _, s := range comp.Notes {
			pitch := 60
			if s.Pitch != nil {
				pitch = *s.Pitch
			}
			dur := int64(defaultNoteDuration)
			if s.Duration != nil {
				dur = *s.Duration
			}
			vel := velocity(defaultNoteVelocity)
			if s.Velocity != nil {
				vel = velocity(*s.Velocity)
			}
			notes = append(notes, model.NewNote(pitch, s.StartTick, s.StartTick+dur, vel))
		}
		return notes, nil
	}

	start := int64(0)
	if req.Selection != nil && req.Selection.StartTick != nil {
		start = *req.Selection.StartTick
	}
	return Progression(comp.Progression, start)
}

// Progression voices each chord symbol for ChordTicks starting at start.
func Progression(chords []string, start int64) ([]model.Note, error) {
	var notes []model.Note
	gate := int64(ChordTicks * ChordGate)
	vel := velocity(defaultChordVelocity)
	for i, name := range chords {
		pitches, err := theory.ParseChord(name)
		if err != nil {
			return nil, fmt.Errorf("chord %d: %w", i+1, err)
		}
		at := start + int64(i)*ChordTicks
		for _, p := range pitches {
			notes = append(notes, model.NewNote(p, at, at+gate, vel))
		}
	}
	return notes, nil
}

// velocity accepts either a 0..1 fraction or a MIDI velocity.
func velocity(v float64) int {
	if v <= 1 {
		v *= 127
	}
	return model.ClampVelocity(int(math.Round(v)))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
