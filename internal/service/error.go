package service

import "errors"

// Error definitions for the service package.
var (
	ErrNoModelAssigned = errors.New("no model assigned to the images service")
)
