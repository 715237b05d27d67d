package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"reqflow/internal/state"
)

// FileStore keeps one file per workflow in a directory, named <id>.json or
// <id>.yaml depending on the format.
type FileStore struct {
	dir    string
	format string
}

// NewFileStore creates a file store rooted at dir. Format is "json" or
// "yaml"; empty means json. The directory is created if missing.
func NewFileStore(dir, format string) (*FileStore, error) {
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "yaml" {
		return nil, fmt.Errorf("unknown file store format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, format: format}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes the state atomically.
func (s *FileStore) Save(_ context.Context, st *state.WorkflowState) error {
	if st == nil {
		return &state.ShapeError{Reason: "state is nil"}
	}
	if err := validateID(st.ID); err != nil {
		return err
	}

	data, err := Encode(st, s.format)
	if err != nil {
		return err
	}
	return WriteAtomic(s.path(st.ID), data)
}

// Load reads a state by ID. Files in either format are accepted.
func (s *FileStore) Load(_ context.Context, id string) (*state.WorkflowState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	for _, format := range s.formats() {
		data, err := os.ReadFile(filepath.Join(s.dir, id+"."+format))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
		}
		return Decode(data, format)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List reads every state file in the directory. Files that fail to decode are
// skipped.
func (s *FileStore) List(_ context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	seen := make(map[string]bool)
	var out []Summary
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		if ext != "json" && ext != "yaml" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), "."+ext)
		if validateID(id) != nil || seen[id] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		st, err := Decode(data, ext)
		if err != nil {
			continue
		}
		seen[id] = true
		out = append(out, summarize(st))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes the state file.
func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	removed := false
	for _, format := range s.formats() {
		err := os.Remove(filepath.Join(s.dir, id+"."+format))
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete workflow %s: %w", id, err)
		}
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+"."+s.format)
}

// formats lists the configured format first.
func (s *FileStore) formats() []string {
	if s.format == "yaml" {
		return []string{"yaml", "json"}
	}
	return []string{"json", "yaml"}
}

// Encode renders a state as JSON or YAML.
func Encode(st *state.WorkflowState, format string) ([]byte, error) {
	switch format {
	case "json", "":
		data, err := state.Marshal(st)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		if st == nil {
			return nil, &state.ShapeError{Reason: "state is nil"}
		}
		data, err := yaml.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal workflow state: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Decode parses a state encoded by [Encode] and validates it.
func Decode(data []byte, format string) (*state.WorkflowState, error) {
	switch format {
	case "json", "":
		return state.Unmarshal(data)
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var st state.WorkflowState
		if err := dec.Decode(&st); err != nil {
			return nil, &state.ShapeError{Err: err}
		}
		if err := state.Validate(&st); err != nil {
			return nil, err
		}
		return &st, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// WriteAtomic writes data to a temp file in the target directory and renames
// it over path.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	tmpName = ""
	return nil
}
