package uploader

import (
	"context"
	"io"
	"mime/multipart"

	"photodrop/internal/metalog"
	"photodrop/internal/storage"
)

const (
	// PhotoField is the multipart field carrying the image
	PhotoField = "photo"
	// NoteField is the optional free text field
	NoteField = "note"

	// MaxNoteSize caps the note field in bytes
	MaxNoteSize = 1 << 20
	// multipartOverhead allows for boundaries and part headers on top of the payload caps
	multipartOverhead = 64 << 10
)

// FileStore persists upload content under a generated name
type FileStore interface {
	Save(ctx context.Context, originalName, contentType string, r io.Reader) (*storage.StoredFile, error)
	Discard(ctx context.Context, filename string) error
	MaxSize() int64
}

// RecordLog receives one record per accepted upload
type RecordLog interface {
	Append(rec metalog.Record) error
}

// UploadRequest is one incoming upload as seen by the service
type UploadRequest struct {
	Form          *multipart.Reader
	ClientAddress string
	UserAgent     string
}

// UploadResult is returned for an accepted upload
type UploadResult struct {
	Filename string
	Size     int64
	Record   metalog.Record
}

// State tracks how far a request got through the ingest pipeline
type State int

const (
	StateReceived State = iota
	StateStored
	StateLogged
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateStored:
		return "stored"
	case StateLogged:
		return "logged"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
