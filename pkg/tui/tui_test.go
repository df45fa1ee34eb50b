package tui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/session"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func TestNavigation(t *testing.T) {
	m := New(session.New(nil, nil), nil)
	if m.state != StateClips {
		t.Fatalf("initial state = %v, want StateClips", m.state)
	}
	m = press(m, "down", "enter")
	if m.state != StateNotes {
		t.Errorf("state after enter = %v, want StateNotes", m.state)
	}
	m = press(m, "esc")
	if m.state != StateClips {
		t.Errorf("state after esc = %v, want StateClips", m.state)
	}
}

func TestTransportKeys(t *testing.T) {
	sess := session.New(nil, nil)
	m := press(New(sess, nil), " ")
	if !sess.Transport().Playing() {
		t.Error("space did not start playback")
	}
	m = press(m, " ", "l", "+")
	if sess.Transport().Playing() || !sess.Transport().Looping() {
		t.Errorf("playing %v, looping %v", sess.Transport().Playing(), sess.Transport().Looping())
	}
	if got := sess.Project().Tempo(); got != 125 {
		t.Errorf("tempo = %v, want 125", got)
	}
	press(m, "u")
	if got := sess.Project().Tempo(); got != 120 {
		t.Errorf("tempo after undo = %v, want 120", got)
	}
}

func TestTempoKeysStayInRange(t *testing.T) {
	sess := session.New(nil, nil)
	m := New(sess, nil)
	for range 30 {
		m = press(m, "-")
	}
	if p, tr := sess.Project().Tempo(), sess.Transport().Tempo(); p != 20 || tr != 20 {
		t.Errorf("tempo after 30 x - = project %v, transport %v, want 20", p, tr)
	}
}

func TestBarKeys(t *testing.T) {
	sess := session.New(nil, nil)
	m := press(New(sess, nil), "]", "]")
	if got := sess.Transport().Position(); got != 7680 {
		t.Errorf("position after ] ] = %d, want 7680", got)
	}
	sess.Transport().SetPosition(9000)
	m = press(m, "[")
	if got := sess.Transport().Position(); got != 7680 {
		t.Errorf("position after [ mid-bar = %d, want 7680", got)
	}
	press(m, "[", "[", "[")
	if got := sess.Transport().Position(); got != 0 {
		t.Errorf("position after [ past bar 1 = %d, want 0", got)
	}
}

func TestAddNoteInsideRegion(t *testing.T) {
	sess := session.New(nil, nil)
	_, clip, _ := sess.ClipByNumber(1)
	tr, _ := sess.TrackByNumber(1)
	tr.UpdateClipRegion(tr.ClipRegions()[0].ID, func(r *model.ClipRegion) { r.StartTick = 3840 })
	sess.Transport().SetPosition(4800)

	press(New(sess, nil), "enter", "a")
	if notes := clip.Notes(); len(notes) != 1 || notes[0].StartTick != 960 {
		t.Errorf("added notes = %+v, want one at clip tick 960", notes)
	}
}

func TestNoteEditing(t *testing.T) {
	sess := session.New(nil, nil)
	_, clip, _ := sess.ClipByNumber(1)
	m := press(New(sess, nil), "enter", "a")
	notes := clip.Notes()
	if len(notes) != 1 || notes[0].Pitch != 60 || notes[0].Duration() != sess.Config().GridTicks() {
		t.Fatalf("added notes = %+v", notes)
	}

	m = press(m, "k", "K")
	if n, _ := clip.Note(notes[0].ID); n.Pitch != 73 {
		t.Errorf("pitch after k, K = %d, want 73", n.Pitch)
	}
	m = press(m, "u")
	if n, _ := clip.Note(notes[0].ID); n.Pitch != 61 {
		t.Errorf("pitch after undo = %d, want 61", n.Pitch)
	}
	m = press(m, "ctrl+r", "x")
	if clip.NumNotes() != 0 {
		t.Errorf("notes after x = %d, want 0", clip.NumNotes())
	}
	if !strings.Contains(m.View(), "no notes") {
		t.Error("empty clip view does not say so")
	}
}

func TestQuantizeKey(t *testing.T) {
	sess := session.New(nil, nil)
	_, clip, _ := sess.ClipByNumber(1)
	id := clip.AddNote(64, 250, 700, 100)
	m := press(New(sess, nil), "enter", "g")
	if n, _ := clip.Note(id); n.StartTick != 240 {
		t.Errorf("start after quantize = %d, want 240", n.StartTick)
	}
	if !strings.Contains(m.status, "quantized 1") {
		t.Errorf("status = %q", m.status)
	}
	if !strings.Contains(m.View(), "E5") {
		t.Error("note table does not show E5")
	}
}

func TestWorkDone(t *testing.T) {
	m := New(session.New(nil, nil), nil)
	m.state = StateWorking
	next, _ := m.Update(workDoneMsg{err: errors.New("disk full")})
	m = next.(Model)
	if m.state != StateClips || !strings.Contains(m.View(), "disk full") {
		t.Errorf("state %v, view %q", m.state, m.View())
	}
}

func TestExportKey(t *testing.T) {
	sess := session.New(nil, nil)
	_, clip, _ := sess.ClipByNumber(1)
	clip.AddNote(60, 0, 480, 100)
	path := filepath.Join(t.TempDir(), "out.mid")

	m := press(New(sess, nil), "enter")
	next, _ := m.startWork("Exporting", m.exportClip(1, path))
	m = next.(Model)
	if m.state != StateWorking {
		t.Fatalf("state = %v, want StateWorking", m.state)
	}
	done := m.exportClip(1, path)()
	next, _ = m.Update(done)
	m = next.(Model)
	if m.err != nil || m.status != "exported out.mid" {
		t.Errorf("err %v, status %q", m.err, m.status)
	}
}
