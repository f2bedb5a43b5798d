package storage

import (
	"errors"
)

var (
	ErrSizeExceeded = errors.New("file exceeds maximum allowed size")
	ErrIOFailure    = errors.New("storage write failed")
)
