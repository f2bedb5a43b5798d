package uploader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"photodrop/internal/metalog"
	"photodrop/internal/storage"
)

// formPart is one part of a test multipart body
type formPart struct {
	field    string
	filename string
	content  []byte
}

func fileField(name string, content []byte) formPart {
	return formPart{field: PhotoField, filename: name, content: content}
}

func textField(field, value string) formPart {
	return formPart{field: field, content: []byte(value)}
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		var w io.Writer
		var err error
		if p.filename != "" {
			w, err = mw.CreateFormFile(p.field, p.filename)
		} else {
			w, err = mw.CreateFormField(p.field)
		}
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func newUploadRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	r := httptest.NewRequest(http.MethodPost, "/upload", body)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("User-Agent", "photodrop-test/1.0")
	r.RemoteAddr = "203.0.113.7:52100"
	return r
}

type testEnv struct {
	dir     string
	writer  *storage.Writer
	records *metalog.Logger
	service *Service
	handler *Handler
}

func newTestEnv(t *testing.T, maxSize int64) *testEnv {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")

	provider, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	writer := storage.NewWriter(provider, maxSize)

	records, err := metalog.Open(filepath.Join(dir, metalog.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	service := NewService(writer, records)
	return &testEnv{
		dir:     dir,
		writer:  writer,
		records: records,
		service: service,
		handler: NewHandler(service),
	}
}

// storedFiles lists uploaded files, excluding the metadata log
func (e *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		if entry.Name() == metalog.FileName {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func (e *testEnv) loggedRecords(t *testing.T) []metalog.Record {
	t.Helper()
	records, err := metalog.ReadFile(e.records.Path())
	require.NoError(t, err)
	return records
}

// failingLog rejects every append
type failingLog struct{}

func (failingLog) Append(metalog.Record) error {
	return errors.New("disk full")
}

// failingStore fails every save after consuming the stream
type failingStore struct {
	discarded []string
}

func (f *failingStore) Save(ctx context.Context, originalName, contentType string, r io.Reader) (*storage.StoredFile, error) {
	_, _ = io.Copy(io.Discard, r)
	return nil, errors.New("permission denied: " + strings.Repeat("/secret", 2))
}

func (f *failingStore) Discard(ctx context.Context, filename string) error {
	f.discarded = append(f.discarded, filename)
	return nil
}

func (f *failingStore) MaxSize() int64 {
	return 1 << 20
}
