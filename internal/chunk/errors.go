package chunk

import "errors"

// ErrInvalidSize is returned by New when a negative chunk size is
// configured.
var ErrInvalidSize = errors.New("chunk: size must be positive")
