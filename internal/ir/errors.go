package ir

import "errors"

// ErrNotFound is wrapped by channel store lookups that miss.
var ErrNotFound = errors.New("not found")
