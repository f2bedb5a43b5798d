package storage

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultExtension is used when the original name carries no usable extension
const DefaultExtension = ".jpg"

const maxExtensionLength = 10

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// GenerateFilename returns "<timestamp>-<8 hex chars><ext>" for a new upload.
// originalName is only consulted for its extension. Names sort by upload time.
// Collisions are not detected, a duplicate silently overwrites.
func GenerateFilename(originalName string) (string, error) {
	return generateFilename(time.Now(), originalName)
}

func generateFilename(now time.Time, originalName string) (string, error) {
	token := make([]byte, 4)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}

	ts := timestampReplacer.Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))

	return fmt.Sprintf("%s-%x%s", ts, token, extension(originalName)), nil
}

// extension keeps the original extension when it is short and alphanumeric
func extension(originalName string) string {
	ext := filepath.Ext(filepath.Base(originalName))
	if len(ext) < 2 || len(ext) > maxExtensionLength+1 {
		return DefaultExtension
	}
	for _, c := range ext[1:] {
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return DefaultExtension
		}
	}
	return ext
}
