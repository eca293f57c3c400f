// Package file persists conversation memory to a single JSON file.
//
// Loading never fails: a missing, unreadable or malformed file is treated as
// an empty memory. Saving replaces the whole file.
package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/igolaizola/gemchat/internal/memory"
)

// DefaultPath is the store file used when no other path is configured.
const DefaultPath = ".conversation_memory.json"

type Store struct {
	path string
}

// New returns a store backed by the file at path.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return s.path
}

// record mirrors memory.Turn with pointers so missing fields can be detected.
type record struct {
	Role *memory.Role `json:"role"`
	Text *string      `json:"text"`
}

// Load returns the stored turns, or nil if the file can't be used.
func (s *Store) Load() []memory.Turn {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var records []record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil
	}
	turns := make([]memory.Turn, 0, len(records))
	for _, r := range records {
		if r.Role == nil || r.Text == nil || !r.Role.Valid() {
			return nil
		}
		turns = append(turns, memory.Turn{Role: *r.Role, Text: *r.Text})
	}
	return turns
}

// Save overwrites the store file with the given turns.
func (s *Store) Save(turns []memory.Turn) error {
	if turns == nil {
		turns = []memory.Turn{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(turns); err != nil {
		return fmt.Errorf("file: couldn't marshal memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("file: couldn't create directory: %w", err)
	}

	// Write to a temporary file first so a failed write keeps the old contents
	tmp, err := os.CreateTemp(dir, ".tmp-memory-*")
	if err != nil {
		return fmt.Errorf("file: couldn't create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: couldn't write memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: couldn't write memory: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: couldn't set permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: couldn't replace %s: %w", s.path, err)
	}
	return nil
}
