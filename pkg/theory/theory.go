// Package theory knows scale and chord spellings and MIDI pitch names.
package theory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrBadPitch = errors.New("invalid pitch name")
	ErrBadChord = errors.New("invalid chord name")
)

// ScaleType names a scale or mode.
type ScaleType int

const (
	Chromatic ScaleType = iota
	Major
	Minor
	Dorian
	Phrygian
	Lydian
	Mixolydian
	Locrian
	PentatonicMajor
	PentatonicMinor
)

var scales = []struct {
	name      string
	intervals []int
}{
	Chromatic:       {"chromatic", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
	Major:           {"major", []int{0, 2, 4, 5, 7, 9, 11}},
	Minor:           {"minor", []int{0, 2, 3, 5, 7, 8, 10}},
	Dorian:          {"dorian", []int{0, 2, 3, 5, 7, 9, 10}},
	Phrygian:        {"phrygian", []int{0, 1, 3, 5, 7, 8, 10}},
	Lydian:          {"lydian", []int{0, 2, 4, 6, 7, 9, 11}},
	Mixolydian:      {"mixolydian", []int{0, 2, 4, 5, 7, 9, 10}},
	Locrian:         {"locrian", []int{0, 1, 3, 5, 6, 8, 10}},
	PentatonicMajor: {"pentatonic-major", []int{0, 2, 4, 7, 9}},
	PentatonicMinor: {"pentatonic-minor", []int{0, 3, 5, 7, 10}},
}

func (s ScaleType) String() string {
	if s >= 0 && int(s) < len(scales) {
		return scales[s].name
	}
	return fmt.Sprintf("ScaleType(%d)", int(s))
}

// Intervals returns the semitone offsets of the scale from its root.
func (s ScaleType) Intervals() []int {
	if s < 0 || int(s) >= len(scales) {
		s = Chromatic
	}
	return append([]int(nil), scales[s].intervals...)
}

// ParseScale matches a scale name case-insensitively.
func ParseScale(name string) (ScaleType, error) {
	for i, sc := range scales {
		if strings.EqualFold(sc.name, name) {
			return ScaleType(i), nil
		}
	}
	return Chromatic, fmt.Errorf("unknown scale %q", name)
}

// InScale reports whether pitch belongs to the scale built on root.
func InScale(pitch, root int, s ScaleType) bool {
	if s == Chromatic {
		return true
	}
	semi := ((pitch-root)%12 + 12) % 12
	for _, i := range s.Intervals() {
		if i == semi {
			return true
		}
	}
	return false
}

// SnapToScale returns the nearest pitch in the scale, preferring the lower
// one on a tie.
func SnapToScale(pitch, root int, s ScaleType) int {
	for d := 0; d < 12; d++ {
		if InScale(pitch-d, root, s) && pitch-d >= 0 {
			return pitch - d
		}
		if InScale(pitch+d, root, s) && pitch+d <= 127 {
			return pitch + d
		}
	}
	return pitch
}

// ChordType names a chord quality.
type ChordType int

const (
	ChordMajor ChordType = iota
	ChordMinor
	ChordDiminished
	ChordAugmented
	ChordSus2
	ChordSus4
	ChordMaj7
	ChordMin7
	ChordDom7
)

var chordIntervals = [][]int{
	ChordMajor:      {0, 4, 7},
	ChordMinor:      {0, 3, 7},
	ChordDiminished: {0, 3, 6},
	ChordAugmented:  {0, 4, 8},
	ChordSus2:       {0, 2, 7},
	ChordSus4:       {0, 5, 7},
	ChordMaj7:       {0, 4, 7, 11},
	ChordMin7:       {0, 3, 7, 10},
	ChordDom7:       {0, 4, 7, 10},
}

var qualities = map[string]ChordType{
	"":      ChordMajor,
	"maj":   ChordMajor,
	"Major": ChordMajor,
	"m":     ChordMinor,
	"min":   ChordMinor,
	"Minor": ChordMinor,
	"dim":   ChordDiminished,
	"aug":   ChordAugmented,
	"+":     ChordAugmented,
	"sus2":  ChordSus2,
	"sus4":  ChordSus4,
	"maj7":  ChordMaj7,
	"m7":    ChordMin7,
	"min7":  ChordMin7,
	"7":     ChordDom7,
}

// Intervals returns the semitone offsets of the chord from its root.
func (c ChordType) Intervals() []int {
	if c < 0 || int(c) >= len(chordIntervals) {
		return []int{0}
	}
	return append([]int(nil), chordIntervals[c]...)
}

// ChordRoot is the lowest root ParseChord places a chord on (C in the octave
// below middle C).
const ChordRoot = 48

// ParseChord turns a chord symbol such as "F#m7" or "Bb" into pitches with
// the root between ChordRoot and ChordRoot+11.
func ParseChord(name string) ([]int, error) {
	name = strings.TrimSpace(name)
	pc, rest, ok := pitchClass(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadChord, name)
	}
	q, ok := qualities[rest]
	if !ok {
		return nil, fmt.Errorf("%w: unknown quality %q", ErrBadChord, rest)
	}
	root := ChordRoot + pc
	iv := q.Intervals()
	out := make([]int, len(iv))
	for i, d := range iv {
		out[i] = root + d
	}
	return out, nil
}

var degreeNames = []string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

var letterClass = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// pitchClass reads a letter and an optional accidental from the front of s.
func pitchClass(s string) (pc int, rest string, ok bool) {
	if s == "" {
		return 0, s, false
	}
	pc, ok = letterClass[s[0]]
	if !ok {
		return 0, s, false
	}
	rest = s[1:]
	r, size := utf8.DecodeRuneInString(rest)
	switch r {
	case '#', '♯':
		pc++
		rest = rest[size:]
	case 'b', '♭':
		pc--
		rest = rest[size:]
	}
	return (pc + 12) % 12, rest, true
}

// PitchName spells pitch with flats; octave numbering puts middle C (60) in
// octave 5.
func PitchName(pitch int) string {
	pitch = min(max(pitch, 0), 127)
	return fmt.Sprintf("%s%d", degreeNames[pitch%12], pitch/12)
}

// ParsePitch reverses PitchName. Sharps may be written # or ♯, flats b or ♭.
func ParsePitch(name string) (int, error) {
	pc, rest, ok := pitchClass(name)
	if !ok || rest == "" || rest[0] < '0' || rest[0] > '9' {
		return 0, fmt.Errorf("%w: %q", ErrBadPitch, name)
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPitch, name)
	}
	// Cb and B# cross the octave boundary.
	base := octave*12 + pc
	switch {
	case strings.HasPrefix(name, "Cb"), strings.HasPrefix(name, "C♭"):
		base -= 12
	case strings.HasPrefix(name, "B#"), strings.HasPrefix(name, "B♯"):
		base += 12
	}
	if base < 0 || base > 127 {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadPitch, name)
	}
	return base, nil
}
