package uploader

import (
	"errors"
)

var (
	ErrNoFile           = errors.New("no file provided")
	ErrUnexpectedField  = errors.New("more than one file in field")
	ErrMalformedRequest = errors.New("malformed multipart body")
)
