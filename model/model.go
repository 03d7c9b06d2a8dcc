// Package model identifies Teensy board models and carries their static
// metadata (MCU name, flash size), grounded on model.h/model.c and the
// identification heuristics of class_teensy.c.
package model

// Model is a board model, or Unknown/Generic for boards that could not
// be (or need not be) identified more precisely.
type Model int

// Teensy models, kept in sync with Info below.
const (
	Unknown Model = iota
	Generic       // a non-Teensy board matched by the generic serial class

	Teensy // unidentified Teensy (e.g. HalfKay usage value not recognized)
	TeensyPP10
	Teensy20
	TeensyPP20
	Teensy30
	Teensy31
	TeensyLC
	Teensy32
	Teensy35
	Teensy36
	Teensy40Beta1
	Teensy40
)

// Info is the static metadata attached to a Model.
type Info struct {
	Name     string
	MCU      string
	CodeSize int
}

var table = map[Model]Info{
	Unknown:       {Name: "(unknown)"},
	Generic:       {Name: "Generic"},
	Teensy:        {Name: "Teensy"},
	TeensyPP10:    {Name: "Teensy++ 1.0", MCU: "at90usb646", CodeSize: 64512},
	Teensy20:      {Name: "Teensy 2.0", MCU: "atmega32u4", CodeSize: 32256},
	TeensyPP20:    {Name: "Teensy++ 2.0", MCU: "at90usb1286", CodeSize: 130048},
	Teensy30:      {Name: "Teensy 3.0", MCU: "mk20dx128", CodeSize: 131072},
	Teensy31:      {Name: "Teensy 3.1", MCU: "mk20dx256", CodeSize: 262144},
	TeensyLC:      {Name: "Teensy LC", MCU: "mkl26z64", CodeSize: 63488},
	Teensy32:      {Name: "Teensy 3.2", MCU: "mk20dx256", CodeSize: 262144},
	Teensy35:      {Name: "Teensy 3.5", MCU: "mk64fx512", CodeSize: 524288},
	Teensy36:      {Name: "Teensy 3.6", MCU: "mk66fx1m0", CodeSize: 1048576},
	Teensy40Beta1: {Name: "Teensy 4.0 (beta1)", MCU: "imxrt1060", CodeSize: 1920 * 1024},
	Teensy40:      {Name: "Teensy 4.0", MCU: "imxrt1060", CodeSize: 1920 * 1024},
}

// Info returns m's static metadata, or the Unknown entry for an
// unrecognized value.
func (m Model) Info() Info {
	if info, ok := table[m]; ok {
		return info
	}
	return table[Unknown]
}

func (m Model) String() string {
	return m.Info().Name
}

// IsReal reports whether m names an actual, programmable board (as
// opposed to Unknown or Generic).
func (m Model) IsReal() bool {
	return m.Info().CodeSize > 0
}

// Find looks up a Model by its display name, returning Unknown when no
// model has that name.
func Find(name string) Model {
	for m, info := range table {
		if info.Name == name {
			return m
		}
	}
	return Unknown
}
