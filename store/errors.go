package store

import "errors"

// Common errors
var (
	ErrNotFound     = errors.New("object not found")
	ErrExists       = errors.New("object already exists")
	ErrTypeMismatch = errors.New("object type mismatch")
	ErrSizeMismatch = errors.New("buffer size mismatch")
	ErrInvalidPath  = errors.New("invalid path")
	ErrClosed       = errors.New("store is closed")
)
