package service

import "errors"

// Errors returned by service operations.
var (
	// ErrProjectClosed indicates the addressed project is closed or unknown.
	ErrProjectClosed = errors.New("project closed")

	// ErrUnknownProject indicates no external project has the given name.
	ErrUnknownProject = errors.New("unknown external project")

	// ErrFileNotOpen indicates the client has not opened the file.
	ErrFileNotOpen = errors.New("file not open")
)
