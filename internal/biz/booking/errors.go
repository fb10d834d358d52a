package booking

import "errors"

// ErrNotFound returned when the referenced booking does not exist.
var ErrNotFound = errors.New("booking not found")
