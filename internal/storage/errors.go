package storage

import "errors"

// ErrWrite classifies failures to stage an upload or persist a result
// artifact. Handlers map it to an internal server error.
var ErrWrite = errors.New("storage write failed")
