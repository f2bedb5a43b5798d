package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photodrop/internal/metalog"
)

func TestPrintRecords(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []metalog.Record{
		{Time: "2024-05-01T10:00:00.000Z", IPHash: "b23a6a8439c0dde5", Filename: "a.png", Note: "hello"},
		{Time: "garbage", IPHash: "805ebf201c523f69", Filename: "b.jpg"},
	}

	var out bytes.Buffer
	printRecords(&out, records, now)

	assert.Equal(t,
		"2024-05-01T10:00:00.000Z (2 hours ago)  b23a6a8439c0dde5  a.png  \"hello\"\n"+
			"garbage  805ebf201c523f69  b.jpg\n"+
			"2 records\n",
		out.String())
}

func TestRunRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), metalog.FileName)
	l, err := metalog.Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(metalog.NewRecord(time.Now(), "b23a6a8439c0dde5", "ua", "a.png", "")))
	require.NoError(t, l.Close())

	var out bytes.Buffer
	require.NoError(t, runRecords(&out, []string{path}))
	assert.Contains(t, out.String(), "a.png")
	assert.Contains(t, out.String(), "1 record\n")
}

func TestRunRecordsMissingFile(t *testing.T) {
	err := runRecords(&bytes.Buffer{}, []string{filepath.Join(t.TempDir(), "none.jsonl")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
