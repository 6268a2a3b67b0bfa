package opl2

import (
	"fmt"

	"github.com/pkg/errors"
)

// NoteName enumerates the twelve semitones of an octave.
type NoteName int

const (
	C NoteName = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var noteNames = map[NoteName]string{
	C:      "C",
	CSharp: "C#",
	D:      "D",
	DSharp: "D#",
	E:      "E",
	F:      "F",
	FSharp: "F#",
	G:      "G",
	GSharp: "G#",
	A:      "A",
	ASharp: "A#",
	B:      "B",
}

func (n NoteName) String() string {
	name, ok := noteNames[n]
	if !ok {
		return fmt.Sprintf("unknown note name (%d)", int(n))
	}

	return name
}

// fNumbers holds the 10-bit frequency number for each semitone, tuned for
// the chip's 3.58 MHz master clock. The same numbers serve every octave; the
// block field shifts them up or down.
var fNumbers = [12]uint16{
	0x156, 0x16B, 0x181, 0x198, 0x1B0, 0x1C8,
	0x1E5, 0x202, 0x220, 0x241, 0x263, 0x287,
}

// Note is a pitch: a semitone name and its octave. The chip spans octaves
// 0-7; higher octave values are masked to that range like any other raw
// register field.
type Note struct {
	Name   NoteName
	Octave uint8
}

// frequency returns the note's 10-bit frequency number and 3-bit block.
func (n Note) frequency() (uint16, uint8, error) {
	if n.Name < C || n.Name > B {
		return 0, 0, errors.Errorf("no such note name: %d", int(n.Name))
	}

	return fNumbers[n.Name], n.Octave & 0x07, nil
}

func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}
