package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"photodrop/internal/anonymize"
	"photodrop/internal/metalog"
	"photodrop/internal/storage"
)

type Service struct {
	files   FileStore
	records RecordLog
	now     func() time.Time
}

func NewService(files FileStore, records RecordLog) *Service {
	return &Service{
		files:   files,
		records: records,
		now:     time.Now,
	}
}

// MaxRequestSize bounds the whole multipart body
func (s *Service) MaxRequestSize() int64 {
	return s.files.MaxSize() + MaxNoteSize + multipartOverhead
}

// ingest carries the per-request pipeline state
type ingest struct {
	state   State
	stored  *storage.StoredFile
	note    string
	hasNote bool
}

// Ingest reads the multipart form, stores the photo and appends its record.
// A request ends Logged on success or Rejected on any error. A rejection before
// the record is written discards the stored file; a failed append keeps it.
func (s *Service) Ingest(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	in := &ingest{state: StateReceived}

	if err := s.readForm(ctx, req.Form, in); err != nil {
		return nil, s.reject(ctx, in, err)
	}

	if in.stored == nil {
		return nil, s.reject(ctx, in, ErrNoFile)
	}

	rec := metalog.NewRecord(
		s.now(),
		anonymize.Hash(req.ClientAddress),
		req.UserAgent,
		in.stored.Filename,
		in.note,
	)

	if err := s.records.Append(rec); err != nil {
		// The file stays, the two writes are not transactional
		s.transition(in, StateRejected)
		log.Error().
			Err(err).
			Str("filename", in.stored.Filename).
			Msg("stored file has no metadata record")
		return nil, fmt.Errorf("appending record: %w", err)
	}
	s.transition(in, StateLogged)

	return &UploadResult{
		Filename: in.stored.Filename,
		Size:     in.stored.Size,
		Record:   rec,
	}, nil
}

func (s *Service) readForm(ctx context.Context, form *multipart.Reader, in *ingest) error {
	if form == nil {
		return ErrNoFile
	}

	for {
		part, err := form.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}

		err = s.readPart(ctx, part, in)
		part.Close()
		if err != nil {
			return err
		}
	}
}

func (s *Service) readPart(ctx context.Context, part *multipart.Part, in *ingest) error {
	switch {
	case part.FormName() == PhotoField && part.FileName() != "":
		if in.stored != nil {
			return ErrUnexpectedField
		}

		stored, err := s.files.Save(ctx, part.FileName(), part.Header.Get("Content-Type"), part)
		if err != nil {
			return err
		}
		in.stored = stored
		s.transition(in, StateStored)
		return nil

	case part.FormName() == NoteField && part.FileName() == "":
		note, err := readNote(part)
		if err != nil {
			return err
		}
		// First note wins
		if !in.hasNote {
			in.note = note
			in.hasNote = true
		}
		return nil

	default:
		// Unknown fields are drained, the request body size cap bounds them
		if _, err := io.Copy(io.Discard, part); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}
		return nil
	}
}

func readNote(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, MaxNoteSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading note: %w", ErrMalformedRequest, err)
	}
	if len(data) > MaxNoteSize {
		return "", fmt.Errorf("note: %w", storage.ErrSizeExceeded)
	}
	return string(data), nil
}

// reject moves the request to Rejected, discards a stored file and
// normalizes body size errors to storage.ErrSizeExceeded.
func (s *Service) reject(ctx context.Context, in *ingest, err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = fmt.Errorf("request body: %w", storage.ErrSizeExceeded)
	}

	if in.stored != nil {
		// Use a fresh context, the request context may already be cancelled
		discardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if discardErr := s.files.Discard(discardCtx, in.stored.Filename); discardErr != nil {
			log.Error().
				Err(discardErr).
				Str("filename", in.stored.Filename).
				Msg("failed to discard file of rejected upload")
		}
	}

	s.transition(in, StateRejected)
	return err
}

func (s *Service) transition(in *ingest, next State) {
	ev := log.Debug().
		Str("from", in.state.String()).
		Str("to", next.String())
	if in.stored != nil {
		ev = ev.Str("filename", in.stored.Filename)
	}
	ev.Msg("upload state changed")
	in.state = next
}
