package metalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileName is the name of the metadata log inside the upload directory
const FileName = "log.jsonl"

// TimeFormat is ISO-8601 in UTC with millisecond precision
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

var ErrIOFailure = errors.New("metadata log write failed")

// Record is one accepted upload. Field order matches the on-disk JSON key order.
type Record struct {
	Time      string `json:"time"`
	IPHash    string `json:"ip_hash"`
	UserAgent string `json:"user_agent"`
	Filename  string `json:"filename"`
	Note      string `json:"note"`
}

// NewRecord stamps a record with the given acceptance time
func NewRecord(at time.Time, ipHash, userAgent, filename, note string) Record {
	return Record{
		Time:      at.UTC().Format(TimeFormat),
		IPHash:    ipHash,
		UserAgent: userAgent,
		Filename:  filename,
		Note:      note,
	}
}

// Logger appends records to a shared append-only JSON-lines file.
// Each Append is one Write of one complete line, serialized by mu.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Open opens the log for appending, creating it and its directory when missing.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening metadata log: %w", err)
	}

	log.Debug().
		Str("path", path).
		Msg("metadata log opened")

	return &Logger{file: f, path: path}, nil
}

// Path returns the location of the log file
func (l *Logger) Path() string {
	return l.path
}

// Append writes rec as a single line.
func (l *Logger) Append(rec Record) error {
	line, err := encodeLine(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", ErrIOFailure, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("%w: log is closed", ErrIOFailure)
	}

	n, err := l.file.Write(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if n != len(line) {
		return fmt.Errorf("%w: %w", ErrIOFailure, io.ErrShortWrite)
	}

	return nil
}

// Close syncs and closes the underlying file. It is safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(syncErr, closeErr)
}

// lineTerminator follows the host platform convention
func lineTerminator() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// encodeLine writes <, > and & literally; the log is not embedded in HTML
func encodeLine(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	line := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return append(line, lineTerminator()...), nil
}

// ReadRecords decodes every line of a metadata log.
// Blank lines are skipped; a malformed line is an error.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(r)
	// Notes can be long
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return records, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("reading metadata log: %w", err)
	}

	return records, nil
}

// ReadFile is ReadRecords for a path
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata log: %w", err)
	}
	defer f.Close()

	return ReadRecords(f)
}
