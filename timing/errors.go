package timing

import (
	"errors"
	"fmt"
)

// Common errors for timing data handling.
var (
	// Normalization errors
	ErrMalformedTiming = errors.New("malformed timing data")

	// Lookup errors
	ErrInvalidPosition = errors.New("invalid playback position")
)

// MalformedDataError describes why a timing document was rejected. It wraps
// ErrMalformedTiming so callers can match with errors.Is.
type MalformedDataError struct {
	ContentID string
	Index     int // chunk or word index, -1 when not positional
	Reason    string
}

// Error implements the error interface.
func (e *MalformedDataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("malformed timing data (content %q, entry %d): %s",
			e.ContentID, e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed timing data (content %q): %s", e.ContentID, e.Reason)
}

// Unwrap returns the underlying sentinel error.
func (e *MalformedDataError) Unwrap() error {
	return ErrMalformedTiming
}

func malformed(contentID string, index int, format string, args ...interface{}) error {
	return &MalformedDataError{
		ContentID: contentID,
		Index:     index,
		Reason:    fmt.Sprintf(format, args...),
	}
}
