package model

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileVersion is written to every saved project.
const FileVersion = "1.0"

// Format is a project file encoding.
type Format string

const (
	FormatXML     Format = "xml"
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

var (
	ErrUnknownFormat = errors.New("unknown project file format")
	ErrNotProject    = errors.New("not a project file")
)

// DetectFormat picks the encoding from the file extension.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xml", ".pdaw":
		return FormatXML
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent guesses the encoding from the first bytes.
func DetectFormatFromContent(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '<':
		return FormatXML
	case '{':
		return FormatJSON
	}
	if bytes.Contains(trimmed, []byte("projectInfo:")) {
		return FormatYAML
	}
	return FormatUnknown
}

type projectDoc struct {
	XMLName xml.Name   `xml:"PianoDAWProject" json:"-" yaml:"-"`
	Version string     `xml:"version,attr" json:"version" yaml:"version"`
	Info    infoDoc    `xml:"ProjectInfo" json:"projectInfo" yaml:"projectInfo"`
	Clips   []clipDoc  `xml:"Clips>Clip" json:"clips" yaml:"clips"`
	Tracks  []trackDoc `xml:"Tracks>Track" json:"tracks" yaml:"tracks"`
}

type infoDoc struct {
	Name          string     `xml:"Name" json:"name" yaml:"name"`
	Tempo         float64    `xml:"Tempo" json:"tempo" yaml:"tempo"`
	TimeSignature timeSigDoc `xml:"TimeSignature" json:"timeSignature" yaml:"timeSignature"`
	Length        int64      `xml:"ProjectLength" json:"projectLength" yaml:"projectLength"`
	LoopStart     int64      `xml:"LoopStart" json:"loopStart" yaml:"loopStart"`
	LoopEnd       int64      `xml:"LoopEnd" json:"loopEnd" yaml:"loopEnd"`
}

type timeSigDoc struct {
	Numerator   int `xml:"numerator,attr" json:"numerator" yaml:"numerator"`
	Denominator int `xml:"denominator,attr" json:"denominator" yaml:"denominator"`
}

type clipDoc struct {
	ID       int          `xml:"id,attr" json:"id" yaml:"id"`
	Name     string       `xml:"name,attr" json:"name" yaml:"name"`
	NextID   NoteID       `xml:"nextNoteId,attr,omitempty" json:"nextNoteId,omitempty" yaml:"nextNoteId,omitempty"`
	Notes    []noteDoc    `xml:"Note" json:"notes" yaml:"notes"`
	CCEvents []ccEventDoc `xml:"CCEvent" json:"ccEvents,omitempty" yaml:"ccEvents,omitempty"`
}

type noteDoc struct {
	ID        NoteID `xml:"id,attr" json:"id" yaml:"id"`
	Pitch     int    `xml:"pitch,attr" json:"pitch" yaml:"pitch"`
	StartTick int64  `xml:"startTick,attr" json:"startTick" yaml:"startTick"`
	EndTick   int64  `xml:"endTick,attr" json:"endTick" yaml:"endTick"`
	Velocity  int    `xml:"velocity,attr" json:"velocity" yaml:"velocity"`
}

type ccEventDoc struct {
	CC    int   `xml:"cc,attr" json:"cc" yaml:"cc"`
	Tick  int64 `xml:"tick,attr" json:"tick" yaml:"tick"`
	Value int   `xml:"value,attr" json:"value" yaml:"value"`
}

type trackDoc struct {
	ID      int         `xml:"id,attr" json:"id" yaml:"id"`
	Name    string      `xml:"name,attr" json:"name" yaml:"name"`
	Type    string      `xml:"type,attr" json:"type" yaml:"type"`
	Color   colorDoc    `xml:"Color" json:"color" yaml:"color"`
	Solo    bool        `xml:"Solo" json:"solo" yaml:"solo"`
	Mute    bool        `xml:"Mute" json:"mute" yaml:"mute"`
	Volume  float64     `xml:"Volume" json:"volume" yaml:"volume"`
	Pan     float64     `xml:"Pan" json:"pan" yaml:"pan"`
	Regions []regionDoc `xml:"ClipRegion" json:"clipRegions,omitempty" yaml:"clipRegions,omitempty"`
}

type colorDoc struct {
	R uint8 `xml:"r,attr" json:"r" yaml:"r"`
	G uint8 `xml:"g,attr" json:"g" yaml:"g"`
	B uint8 `xml:"b,attr" json:"b" yaml:"b"`
}

type regionDoc struct {
	ID         RegionID `xml:"id,attr,omitempty" json:"id,omitempty" yaml:"id,omitempty"`
	ClipID     int      `xml:"clipId,attr" json:"clipId" yaml:"clipId"`
	StartTick  int64    `xml:"startTick,attr" json:"startTick" yaml:"startTick"`
	OffsetTick int64    `xml:"offsetTick,attr" json:"offsetTick" yaml:"offsetTick"`
	LengthTick int64    `xml:"lengthTick,attr" json:"lengthTick" yaml:"lengthTick"`
	Muted      bool     `xml:"muted,attr" json:"muted" yaml:"muted"`
}

// snapshot copies the project into a document. Locks are released before
// the document is returned.
func (p *Project) snapshot() projectDoc {
	p.mu.RLock()
	defer p.mu.RUnlock()

	doc := projectDoc{
		Version: FileVersion,
		Info: infoDoc{
			Name:          p.name,
			Tempo:         p.tempo,
			TimeSignature: timeSigDoc{Numerator: p.num, Denominator: p.den},
			Length:        p.length,
			LoopStart:     p.loopStart,
			LoopEnd:       p.loopEnd,
		},
	}

	ids := make(map[ClipHandle]int)
	for i, h := range p.handles() {
		c := p.slots[h.Index].clip
		ids[h] = i + 1
		cd := clipDoc{ID: i + 1}
		c.mu.RLock()
		cd.Name = c.name
		cd.NextID = c.nextNoteID
		for _, n := range c.notes {
			cd.Notes = append(cd.Notes, noteDoc(n))
		}
		for _, e := range c.ccEvents {
			cd.CCEvents = append(cd.CCEvents, ccEventDoc(e))
		}
		c.mu.RUnlock()
		doc.Clips = append(doc.Clips, cd)
	}

	for i, t := range p.tracks {
		t.mu.RLock()
		td := trackDoc{
			ID:     i + 1,
			Name:   t.name,
			Type:   t.typ.String(),
			Color:  colorDoc(t.color),
			Solo:   t.solo,
			Mute:   t.muted,
			Volume: t.volume,
			Pan:    t.pan,
		}
		for _, r := range t.regions {
			id, ok := ids[r.Clip]
			if !ok {
				continue
			}
			td.Regions = append(td.Regions, regionDoc{
				ID:         r.ID,
				ClipID:     id,
				StartTick:  r.StartTick,
				OffsetTick: r.OffsetTick,
				LengthTick: r.LengthTick,
				Muted:      r.Muted,
			})
		}
		t.mu.RUnlock()
		doc.Tracks = append(doc.Tracks, td)
	}
	return doc
}

// Encode writes the project to w in format f.
func (p *Project) Encode(w io.Writer, f Format) error {
	doc := p.snapshot()
	switch f {
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode project: %w", err)
		}
		_, err := io.WriteString(w, "\n")
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode project: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode project: %w", err)
		}
		return nil
	default:
		return ErrUnknownFormat
	}
}

// Decode replaces the project's contents with the document read from r.
// Handles obtained before Decode go stale. The file path and modified flag
// are left alone.
func (p *Project) Decode(r io.Reader, f Format) error {
	var doc projectDoc
	var err error
	switch f {
	case FormatXML:
		err = xml.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	default:
		return ErrUnknownFormat
	}
	if err != nil {
		return fmt.Errorf("failed to decode project: %w", err)
	}
	if doc.Version == "" {
		return ErrNotProject
	}
	p.apply(doc)
	return nil
}

func (p *Project) apply(doc projectDoc) {
	clips := make([]*Clip, len(doc.Clips))
	for i, cd := range doc.Clips {
		c := NewClip(cd.Name)
		for _, nd := range cd.Notes {
			n := Note(nd)
			if n.ID <= 0 {
				c.AddNoteValue(n)
			} else if !c.RestoreNote(n) {
				c.AddNoteValue(n)
			}
		}
		for _, ed := range cd.CCEvents {
			c.AddCCEvent(CCEvent(ed))
		}
		if cd.NextID > c.nextNoteID {
			c.nextNoteID = cd.NextID
		}
		clips[i] = c
	}

	tracks := make([]*Track, 0, len(doc.Tracks))
	regions := make([][]regionDoc, 0, len(doc.Tracks))
	for _, td := range doc.Tracks {
		typ, err := ParseTrackType(td.Type)
		if err != nil {
			typ = TrackMIDI
		}
		t := NewTrack(td.Name, typ)
		t.color = Color(td.Color)
		t.solo = td.Solo
		t.muted = td.Mute
		t.volume = min(max(td.Volume, 0), 1)
		t.pan = min(max(td.Pan, -1), 1)
		tracks = append(tracks, t)
		regions = append(regions, td.Regions)
	}

	info := doc.Info
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range p.handles() {
		p.release(h.Index)
	}
	slices.SortFunc(p.free, func(a, b uint32) int { return int(b) - int(a) })

	byID := make(map[int]ClipHandle, len(clips))
	for i, c := range clips {
		byID[doc.Clips[i].ID] = p.attach(c)
	}
	for i, t := range tracks {
		for _, rd := range regions[i] {
			h, ok := byID[rd.ClipID]
			if !ok {
				continue
			}
			r := ClipRegion{
				ID:         rd.ID,
				Clip:       h,
				StartTick:  rd.StartTick,
				OffsetTick: rd.OffsetTick,
				LengthTick: rd.LengthTick,
				Muted:      rd.Muted,
			}
			if r.ID <= 0 || !t.RestoreClipRegion(r) {
				t.AddClipRegion(r)
			}
		}
	}

	p.tracks = tracks
	p.name = info.Name
	p.tempo = clampTempo(info.Tempo)
	p.num = min(max(info.TimeSignature.Numerator, 1), 32)
	p.den = min(max(info.TimeSignature.Denominator, 1), 32)
	p.length = max(info.Length, 0)
	if p.length == 0 {
		p.length = DefaultLength
	}
	p.loopStart = max(info.LoopStart, 0)
	p.loopEnd = max(info.LoopEnd, p.loopStart)
	if p.loopEnd == p.loopStart {
		p.loopStart, p.loopEnd = 0, DefaultLoopEnd
	}
}

// SaveFile writes the project to path, choosing the encoding from the
// extension (XML when unknown). On success the project remembers path and is
// no longer modified.
func (p *Project) SaveFile(path string) error {
	f := DetectFormat(path)
	if f == FormatUnknown {
		f = FormatXML
	}
	var buf bytes.Buffer
	if err := p.Encode(&buf, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}
	p.mu.Lock()
	p.filePath = path
	p.modified = false
	p.mu.Unlock()
	return nil
}

// LoadFile replaces the project's contents with the file at path.
func (p *Project) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read project file: %w", err)
	}
	f := DetectFormat(path)
	if f == FormatUnknown {
		f = DetectFormatFromContent(data)
	}
	if err := p.Decode(bytes.NewReader(data), f); err != nil {
		return err
	}
	p.mu.Lock()
	p.filePath = path
	p.modified = false
	p.mu.Unlock()
	return nil
}

// OpenProject loads a new project from path.
func OpenProject(path string) (*Project, error) {
	p := NewProject("")
	if err := p.LoadFile(path); err != nil {
		return nil, err
	}
	return p, nil
}
