package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrUnsupportedImage  = errors.New("input is not a decodable image")
	ErrNoForeground      = errors.New("no foreground subject detected")
)
