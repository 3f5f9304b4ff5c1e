package project

import "errors"

// ErrClosed is returned when an operation addresses a closed project.
var ErrClosed = errors.New("project closed")
