package lockon

import (
	"fmt"

	lockerrors "github.com/mirkobrombin/go-lockon/v1/errors"
)

// Marker flags the input a call locks on. FieldPath is a dot separated path
// into that input; empty means the input itself.
type Marker struct {
	FieldPath string
}

// On returns a marker for the given field path.
func On(fieldPath string) *Marker {
	return &Marker{FieldPath: fieldPath}
}

// Call describes one invocation: its arguments in order and, for each
// position, the marker attached to it or nil.
type Call struct {
	Args    []any
	Markers []*Marker
}

// Locate returns the position of the only marked input and its field path.
// It fails with errors.ErrMarkerNotFound when no position is marked and with
// errors.ErrAmbiguousMarker when more than one is.
func Locate(markers []*Marker) (int, string, error) {
	index := -1
	for i, m := range markers {
		if m == nil {
			continue
		}
		if index >= 0 {
			return -1, "", fmt.Errorf("%w: inputs %d and %d", lockerrors.ErrAmbiguousMarker, index, i)
		}
		index = i
	}
	if index < 0 {
		return -1, "", fmt.Errorf("%w: %d inputs inspected", lockerrors.ErrMarkerNotFound, len(markers))
	}
	return index, markers[index].FieldPath, nil
}
