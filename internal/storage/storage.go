// Package storage holds errors shared by the blob store implementations.
package storage

import "errors"

// ErrNotFound is returned by GetObject when no object exists at the path.
var ErrNotFound = errors.New("storage: object not found")
