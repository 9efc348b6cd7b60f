package models

import "fmt"

// Warning is a non-fatal problem met while scanning or parsing. Operations
// return warnings next to their results instead of failing.
type Warning struct {
	Collection string
	Path       string
	Err        error
}

func (w Warning) String() string {
	switch {
	case w.Path != "":
		return fmt.Sprintf("%s: %s: %v", w.Collection, w.Path, w.Err)
	case w.Collection != "":
		return fmt.Sprintf("%s: %v", w.Collection, w.Err)
	default:
		return fmt.Sprint(w.Err)
	}
}

// MarshalText lets warnings appear as plain strings in JSON payloads.
func (w Warning) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
