package uploader

import (
	"bytes"
	"context"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photodrop/internal/anonymize"
	"photodrop/internal/metalog"
	"photodrop/internal/storage"
)

var storedNamePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z-[0-9a-f]{8}\.png$`)

func uploadRequest(t *testing.T, parts ...formPart) *UploadRequest {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	return &UploadRequest{
		Form:          multipart.NewReader(body, params["boundary"]),
		ClientAddress: "198.51.100.23",
		UserAgent:     "curl/8.4.0",
	}
}

func TestIngest(t *testing.T) {
	env := newTestEnv(t, 5*1024*1024)
	fixed := time.Date(2024, 5, 1, 10, 20, 30, 123000000, time.UTC)
	env.service.now = func() time.Time { return fixed }

	content := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 512)
	req := uploadRequest(t, fileField("photo.png", content), textField(NoteField, "hello"))

	result, err := env.service.Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.Regexp(t, storedNamePattern, result.Filename)
	assert.Equal(t, int64(len(content)), result.Size)
	assert.Equal(t, []string{result.Filename}, env.storedFiles(t))

	data, err := os.ReadFile(filepath.Join(env.dir, result.Filename))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	records := env.loggedRecords(t)
	require.Len(t, records, 1)
	assert.Equal(t, metalog.Record{
		Time:      "2024-05-01T10:20:30.123Z",
		IPHash:    anonymize.Hash("198.51.100.23"),
		UserAgent: "curl/8.4.0",
		Filename:  result.Filename,
		Note:      "hello",
	}, records[0])
	assert.Equal(t, records[0], result.Record)
}

func TestIngestNoteBeforeFile(t *testing.T) {
	env := newTestEnv(t, 1024)

	req := uploadRequest(t, textField(NoteField, "first"), fileField("a.png", []byte("data")))
	result, err := env.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Record.Note)
}

func TestIngestWithoutNote(t *testing.T) {
	env := newTestEnv(t, 1024)

	result, err := env.service.Ingest(context.Background(), uploadRequest(t, fileField("a.png", []byte("data"))))
	require.NoError(t, err)
	assert.Empty(t, result.Record.Note)
}

func TestIngestIgnoresUnknownFields(t *testing.T) {
	env := newTestEnv(t, 1024)

	req := uploadRequest(t,
		textField("album", "holidays"),
		formPart{field: "thumbnail", filename: "t.png", content: []byte("thumb")},
		fileField("a.png", []byte("data")),
	)
	result, err := env.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{result.Filename}, env.storedFiles(t))
}

func TestIngestRejections(t *testing.T) {
	tests := []struct {
		name    string
		parts   []formPart
		wantErr error
	}{
		{
			name:    "No file",
			parts:   []formPart{textField(NoteField, "hello")},
			wantErr: ErrNoFile,
		},
		{
			name:    "Photo field without filename",
			parts:   []formPart{textField(PhotoField, "not a file")},
			wantErr: ErrNoFile,
		},
		{
			name:    "File too large",
			parts:   []formPart{fileField("big.png", make([]byte, 101))},
			wantErr: storage.ErrSizeExceeded,
		},
		{
			name:    "Note too large",
			parts:   []formPart{fileField("a.png", []byte("ok")), textField(NoteField, strings.Repeat("n", MaxNoteSize+1))},
			wantErr: storage.ErrSizeExceeded,
		},
		{
			name:    "Two files",
			parts:   []formPart{fileField("a.png", []byte("one")), fileField("b.png", []byte("two"))},
			wantErr: ErrUnexpectedField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 100)

			result, err := env.service.Ingest(context.Background(), uploadRequest(t, tt.parts...))
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.storedFiles(t), "rejected uploads leave no file")
			assert.Empty(t, env.loggedRecords(t), "rejected uploads leave no record")
		})
	}
}

func TestIngestNilForm(t *testing.T) {
	env := newTestEnv(t, 100)

	_, err := env.service.Ingest(context.Background(), &UploadRequest{ClientAddress: anonymize.Unknown})
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestIngestMalformedBody(t *testing.T) {
	env := newTestEnv(t, 100)

	req := &UploadRequest{
		Form: multipart.NewReader(strings.NewReader("--b\r\nContent-Disposition: form-data; name=\"photo\"; filename=\"a.png\"\r\n\r\nda"), "b"),
	}
	_, err := env.service.Ingest(context.Background(), req)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFile)
	assert.Empty(t, env.storedFiles(t))
}

func TestIngestLogFailureKeepsFile(t *testing.T) {
	env := newTestEnv(t, 1024)
	service := NewService(env.writer, failingLog{})

	_, err := service.Ingest(context.Background(), uploadRequest(t, fileField("a.png", []byte("data"))))
	assert.Error(t, err)
	assert.Len(t, env.storedFiles(t), 1, "stored file is not rolled back")
}

func TestIngestStorageFailure(t *testing.T) {
	store := &failingStore{}
	env := newTestEnv(t, 1024)
	service := NewService(store, env.records)

	_, err := service.Ingest(context.Background(), uploadRequest(t, fileField("a.png", []byte("data"))))
	assert.Error(t, err)
	assert.Empty(t, store.discarded)
	assert.Empty(t, env.loggedRecords(t))
}

func TestIngestConcurrent(t *testing.T) {
	env := newTestEnv(t, 64*1024)
	const n = 50

	reqs := make([]*UploadRequest, n)
	for i := range reqs {
		reqs[i] = uploadRequest(t, fileField("photo.png", bytes.Repeat([]byte("x"), 4096)), textField(NoteField, "concurrent"))
	}

	var wg sync.WaitGroup
	results := make(chan *UploadResult, n)
	errs := make(chan error, n)
	for _, req := range reqs {
		wg.Add(1)
		go func(req *UploadRequest) {
			defer wg.Done()
			result, err := env.service.Ingest(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}(req)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	names := make(map[string]bool)
	for r := range results {
		names[r.Filename] = true
	}
	require.Len(t, names, n)

	records := env.loggedRecords(t)
	require.Len(t, records, n)
	for _, rec := range records {
		assert.True(t, names[rec.Filename], "record for unknown file %s", rec.Filename)
		assert.Equal(t, "concurrent", rec.Note)
	}
	assert.Len(t, env.storedFiles(t), n)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "received", StateReceived.String())
	assert.Equal(t, "stored", StateStored.String())
	assert.Equal(t, "logged", StateLogged.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "unknown", State(42).String())
}
