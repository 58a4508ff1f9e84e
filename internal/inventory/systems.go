package inventory

import "fmt"

// systemSpec is the per-platform wire convention: which REST resource holds
// reservations and which field carries the number. Three fixed variants, so
// a lookup table rather than an interface.
type systemSpec struct {
	ResourcePath string
	NumberField  string
}

var systemSpecs = map[SystemType]systemSpec{
	SystemSfB:   {ResourcePath: "ReservedLineUri", NumberField: "LineUri"},
	SystemCisco: {ResourcePath: "ReservedExtension", NumberField: "Extension"},
	SystemAvaya: {ResourcePath: "ReservedStation", NumberField: "StationExtension"},
}

// ResourcePath returns the reservation REST resource for a system type.
func (t SystemType) ResourcePath() (string, error) {
	s, ok := systemSpecs[t]
	if !ok {
		return "", fmt.Errorf("unknown system type %q", string(t))
	}
	return s.ResourcePath, nil
}

// NumberField returns the wire field name carrying the number for a system
// type.
func (t SystemType) NumberField() (string, error) {
	s, ok := systemSpecs[t]
	if !ok {
		return "", fmt.Errorf("unknown system type %q", string(t))
	}
	return s.NumberField, nil
}
