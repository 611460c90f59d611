package json

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// Reader handles file reading operations
type Reader struct {
	fs afero.Fs
}

// NewReader creates a new filesystem reader
func NewReader(fs afero.Fs) *Reader {
	return &Reader{fs: fs}
}

// ReadJSON reads and unmarshals JSON from a file
func (r *Reader) ReadJSON(path string, target any) error {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}

// Exists reports whether a file is present at path
func (r *Reader) Exists(path string) (bool, error) {
	return afero.Exists(r.fs, path)
}
