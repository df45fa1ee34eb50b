// Package tui provides a terminal user interface for pianodaw
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/pianodaw/pkg/edit"
	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/session"
	"github.com/james-see/pianodaw/pkg/theory"
	"github.com/james-see/pianodaw/pkg/timing"
)

// Ivory and ebony with a felt-red accent
var (
	ivory    = lipgloss.Color("#F5F0E1")
	felt     = lipgloss.Color("#C8102E")
	brass    = lipgloss.Color("#D4AF37")
	ebony    = lipgloss.Color("#1B1B1B")
	dimGray  = lipgloss.Color("#666666")
	softGray = lipgloss.Color("#A0A0A0")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ivory).
			Background(felt).
			Padding(0, 2).
			MarginBottom(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(softGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(ivory).
			Bold(true).
			PaddingLeft(2)

	transportStyle = lipgloss.NewStyle().
			Foreground(brass).
			Background(ebony).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(brass).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(felt).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(felt).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateClips State = iota
	StateNotes
	StateFilePicker
	StateWorking
)

type pickPurpose int

const (
	pickOpen pickPurpose = iota
	pickImport
)

type keyMap []key.Binding

func (k keyMap) ShortHelp() []key.Binding  { return k }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k} }

func bind(keys, desc string) key.Binding {
	return key.NewBinding(key.WithKeys(strings.Fields(keys)...), key.WithHelp(keys, desc))
}

var (
	clipKeys = keyMap{
		bind("↑/↓", "clip"), bind("enter", "notes"), bind("space", "play"),
		bind("[/]", "bar"), bind("l", "loop"), bind("+/-", "tempo"), bind("u", "undo"), bind("ctrl+r", "redo"),
		bind("s", "save"), bind("o", "open"), bind("i", "import"), bind("q", "quit"),
	}
	noteKeys = keyMap{
		bind("↑/↓", "select"), bind("k/j", "±1"), bind("K/J", "±12"), bind("a", "add"),
		bind("x", "delete"), bind("g", "quantize"), bind("h", "humanize"), bind("L", "legato"),
		bind("e", "export"), bind("esc", "back"),
	}
	pickerKeys = keyMap{bind("enter", "choose"), bind("esc", "back")}
)

// noteRows is how many notes the note table shows at once.
const noteRows = 16

// refreshInterval is how often the playhead display updates.
const refreshInterval = 100 * time.Millisecond

// player runs playback in the background. A nil send only clocks the
// transport so the playhead moves without MIDI output.
type player struct {
	sess   *session.Session
	send   func(midi.Message) error
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *player) start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go func() {
		defer close(done)
		var err error
		if p.send == nil {
			err = p.sess.Transport().Run(ctx, 0)
		} else {
			err = p.sess.Play(ctx, nil, p.send)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			p.sess.Logger().Error("playback stopped", "err", err)
		}
	}()
}

func (p *player) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

// restart rebinds playback to the session's current project.
func (p *player) restart() {
	if p.cancel == nil {
		return
	}
	p.stop()
	p.start()
}

// Model represents the TUI model
type Model struct {
	sess       *session.Session
	player     *player
	state      State
	clipIndex  int
	noteIndex  int
	filePicker filepicker.Model
	picking    pickPurpose
	spinner    spinner.Model
	helpView   help.Model
	working    string
	status     string
	err        error
	width      int
	height     int
}

type tickMsg time.Time

// workDoneMsg signals that a file operation finished.
type workDoneMsg struct {
	status string
	reload bool
	err    error
}

// New creates a TUI over sess. send receives playback output once Run starts
// the player; it may be nil.
func New(sess *session.Session, send func(midi.Message) error) Model {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(felt)

	return Model{
		sess:       sess,
		player:     &player{sess: sess, send: send},
		state:      StateClips,
		filePicker: fp,
		spinner:    s,
		helpView:   help.New(),
	}
}

// Init starts the playhead refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs every message while it is open.
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateClips
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			if m.picking == pickOpen {
				return m.startWork("Opening "+filepath.Base(path), m.openProject(path))
			}
			return m.startWork("Importing "+filepath.Base(path), m.importMIDI(path))
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		m.helpView.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateClips:
			return m.updateClips(msg)
		case StateNotes:
			return m.updateNotes(msg)
		}

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case workDoneMsg:
		m.state = StateClips
		m.working = ""
		m.err = msg.err
		m.status = msg.status
		if msg.reload && msg.err == nil {
			m.clipIndex, m.noteIndex = 0, 0
			m.player.restart()
		}
		return m, nil
	}

	return m, nil
}

// updateShared handles the keys that work in both editor states.
func (m Model) updateShared(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	tr := m.sess.Transport()
	switch msg.String() {
	case " ":
		tr.Toggle()
	case "home", "0":
		tr.SetPosition(0)
	case "[", "]":
		beats := m.sess.Project().Info().Numerator
		bar := timing.TickToBarBeat(tr.Position(), beats).Bar
		switch {
		case msg.String() == "]":
			bar++
		case tr.Position() == timing.BarToTick(bar, beats):
			bar--
		}
		tr.SetPosition(timing.BarToTick(max(bar, 1), beats))
	case "l":
		tr.SetLooping(!tr.Looping())
	case "+", "=":
		m.sess.SetTempo(tr.Tempo() + 5)
	case "-", "_":
		m.sess.SetTempo(tr.Tempo() - 5)
	case "u":
		m.setStatus("undo", m.sess.Undo())
	case "ctrl+r":
		m.setStatus("redo", m.sess.Redo())
	case "s":
		return m.saveKey()
	case "ctrl+c":
		return m, tea.Quit, true
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m *Model) setStatus(what string, ok bool) {
	m.err = nil
	if ok {
		m.status = what + " done"
	} else {
		m.status = "nothing to " + what
	}
}

func (m Model) saveKey() (Model, tea.Cmd, bool) {
	path := m.sess.Project().FilePath()
	if path == "" {
		name := m.sess.Project().Name()
		if name == "" {
			name = "untitled"
		}
		dir, _ := os.Getwd()
		path = filepath.Join(dir, strings.ToLower(strings.ReplaceAll(name, " ", "-"))+".yaml")
	}
	next, cmd := m.startWork("Saving "+filepath.Base(path), m.saveProject(path))
	return next.(Model), cmd, true
}

func (m Model) updateClips(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if next, cmd, ok := m.updateShared(msg); ok {
		return next, cmd
	}
	switch msg.String() {
	case "up", "k":
		if m.clipIndex > 0 {
			m.clipIndex--
		}
	case "down", "j":
		if m.clipIndex < m.sess.Project().NumClips()-1 {
			m.clipIndex++
		}
	case "enter":
		if _, _, err := m.sess.ClipByNumber(m.clipIndex + 1); err == nil {
			m.state = StateNotes
			m.noteIndex = 0
		}
	case "o":
		m.picking = pickOpen
		m.filePicker.AllowedTypes = []string{".pdaw", ".xml", ".yaml", ".yml", ".json"}
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "i":
		m.picking = pickImport
		m.filePicker.AllowedTypes = []string{".mid", ".midi"}
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateNotes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if next, cmd, ok := m.updateShared(msg); ok {
		return next, cmd
	}
	handle, clip, err := m.sess.ClipByNumber(m.clipIndex + 1)
	if err != nil {
		m.state = StateClips
		return m, nil
	}
	notes := clip.Notes()
	selected := func() []model.NoteID {
		if m.noteIndex < len(notes) {
			return []model.NoteID{notes[m.noteIndex].ID}
		}
		return nil
	}

	switch msg.String() {
	case "up":
		if m.noteIndex > 0 {
			m.noteIndex--
		}
	case "down":
		if m.noteIndex < len(notes)-1 {
			m.noteIndex++
		}
	case "k":
		m.sess.Do(edit.NewTranspose(clip, selected(), 1))
	case "j":
		m.sess.Do(edit.NewTranspose(clip, selected(), -1))
	case "K":
		m.sess.Do(edit.NewTranspose(clip, selected(), 12))
	case "J":
		m.sess.Do(edit.NewTranspose(clip, selected(), -12))
	case "a":
		pitch := 60
		if len(notes) > 0 {
			pitch = notes[min(m.noteIndex, len(notes)-1)].Pitch
		}
		pos := m.sess.ClipTick(handle, m.sess.Transport().Position())
		start := timing.SnapToGrid(pos, m.sess.Config().GridTicks())
		m.sess.Do(edit.NewAddNote(clip, pitch, start, start+m.sess.Config().GridTicks(), 100))
	case "x", "delete":
		if ids := selected(); ids != nil {
			m.sess.Do(edit.NewRemoveNote(clip, ids[0]))
			if m.noteIndex >= len(notes)-1 && m.noteIndex > 0 {
				m.noteIndex--
			}
		}
	case "g":
		cmd := edit.NewQuantize(clip, session.NoteIDs(clip), m.sess.QuantizeParams())
		m.sess.Do(cmd)
		m.status = fmt.Sprintf("quantized %d notes to %s", len(cmd.Moved()), m.sess.Config().Grid)
	case "L":
		m.sess.Do(edit.NewLegato(clip, session.NoteIDs(clip)))
	case "h":
		cmd, _ := edit.NewTransform("humanize", clip, session.NoteIDs(clip), 20)
		m.sess.Do(cmd)
	case "e":
		n := m.clipIndex + 1
		name := clip.Name()
		if name == "" {
			name = fmt.Sprintf("clip-%d", n)
		}
		dir, _ := os.Getwd()
		path := filepath.Join(dir, name+".mid")
		return m.startWork("Exporting "+filepath.Base(path), m.exportClip(n, path))
	case "esc", "q":
		m.state = StateClips
	}
	return m, nil
}

func (m Model) startWork(label string, work tea.Cmd) (tea.Model, tea.Cmd) {
	m.state = StateWorking
	m.working = label
	m.err = nil
	return m, tea.Batch(m.spinner.Tick, work)
}

func (m Model) openProject(path string) tea.Cmd {
	return func() tea.Msg {
		if err := m.sess.Open(path); err != nil {
			return workDoneMsg{err: err}
		}
		return workDoneMsg{status: "opened " + filepath.Base(path), reload: true}
	}
}

func (m Model) importMIDI(path string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.sess.ImportMIDI(path); err != nil {
			return workDoneMsg{err: err}
		}
		return workDoneMsg{status: "imported " + filepath.Base(path)}
	}
}

func (m Model) saveProject(path string) tea.Cmd {
	return func() tea.Msg {
		if err := m.sess.SaveAs(path); err != nil {
			return workDoneMsg{err: err}
		}
		return workDoneMsg{status: "saved " + filepath.Base(path)}
	}
}

func (m Model) exportClip(n int, path string) tea.Cmd {
	return func() tea.Msg {
		if err := m.sess.ExportClip(n, path); err != nil {
			return workDoneMsg{err: err}
		}
		return workDoneMsg{status: "exported " + filepath.Base(path)}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")
	s.WriteString(m.viewTransport())
	s.WriteString("\n\n")

	switch m.state {
	case StateClips:
		s.WriteString(m.viewClips())
	case StateNotes:
		s.WriteString(m.viewNotes())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(boxStyle.Render(fmt.Sprintf("%s %s...", m.spinner.View(), m.working)))
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	} else if m.status != "" {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(m.status))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help()))
	return s.String()
}

func (m Model) help() string {
	switch m.state {
	case StateNotes:
		return m.helpView.View(noteKeys)
	case StateFilePicker:
		return m.helpView.View(pickerKeys)
	}
	return m.helpView.View(clipKeys)
}

func (m Model) viewTransport() string {
	st := m.sess.Transport().State()
	info := m.sess.Project().Info()
	icon := "■"
	if st.Playing {
		icon = "▶"
	}
	loop := "off"
	if st.Looping {
		loop = fmt.Sprintf("%s-%s",
			timing.TickToBarBeat(st.LoopStart, info.Numerator),
			timing.TickToBarBeat(st.LoopEnd, info.Numerator))
	}
	mod := ""
	if info.Modified {
		mod = " *"
	}
	return transportStyle.Render(fmt.Sprintf("%s %s  %.1f BPM  %d/%d  loop %s  %s%s",
		icon, timing.TickToBarBeat(st.Tick, info.Numerator), st.BPM,
		info.Numerator, info.Denominator, loop, info.Name, mod))
}

func (m Model) viewClips() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(" CLIPS "))
	s.WriteString("\n\n")

	p := m.sess.Project()
	num, _ := p.TimeSignature()
	for i, h := range p.ClipHandles() {
		clip, ok := p.Clip(h)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%-20s %4d notes  %s", clip.Name(), clip.NumNotes(),
			timing.TickToBarBeat(clip.TotalDuration(), num))
		if i == m.clipIndex {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(rowStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}
	return boxStyle.Render(s.String())
}

func (m Model) viewNotes() string {
	var s strings.Builder
	_, clip, err := m.sess.ClipByNumber(m.clipIndex + 1)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(clip.Name()))))
	s.WriteString("\n\n")

	notes := clip.Notes()
	if len(notes) == 0 {
		s.WriteString(rowStyle.Render("no notes, press a to add one"))
		return boxStyle.Render(s.String())
	}
	num, _ := m.sess.Project().TimeSignature()
	s.WriteString(rowStyle.Render(fmt.Sprintf("  %-5s %-6s %-10s %6s %4s", "#", "Pitch", "Start", "Length", "Vel")))
	s.WriteString("\n")

	first := max(0, min(m.noteIndex-noteRows/2, len(notes)-noteRows))
	for i := first; i < min(first+noteRows, len(notes)); i++ {
		n := notes[i]
		line := fmt.Sprintf("%-5d %-6s %-10s %6d %4d", n.ID, theory.PitchName(n.Pitch),
			timing.TickToBarBeat(n.StartTick, num), n.Duration(), n.Velocity)
		if i == m.noteIndex {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(rowStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}
	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder
	title := " OPEN PROJECT "
	if m.picking == pickImport {
		title = " IMPORT MIDI "
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	return s.String()
}

func asciiLogo() string {
	logo := `
       _                       __
  ___ (_)__ ____  ___  ___ ___/ /__ __    __
 / _ \/ / _ '/ _ \/ _ \/ _ / _  / _ '/ |/|/ /
/ .__/_/\_,_/_//_/\___/\___\_,_/\_,_/|__,__/
/_/
`
	return lipgloss.NewStyle().Foreground(felt).Render(logo)
}

// Run starts the TUI over sess and plays through send while it runs. A nil
// send moves the playhead without MIDI output.
func Run(sess *session.Session, send func(midi.Message) error) error {
	m := New(sess, send)
	m.player.start()
	defer m.player.stop()
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
