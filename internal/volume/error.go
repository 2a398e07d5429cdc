package volume

import "errors"

// Error definitions for the volume package.
var (
	ErrObjectNotFound = errors.New("object not found in volume")
)
