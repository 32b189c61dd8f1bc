package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

// Format is a serialization format for snapshots and diffs.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from a file extension; anything that is not
// YAML is JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes v, keeping ordered map key order in both formats.
func Marshal(v any, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatJSON, "":
		return json.MarshalIndent(v, "", "  ")
	}
	return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported format %q", format)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any, format Format) error {
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, v)
	case FormatJSON, "":
		err = json.Unmarshal(data, v)
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported format %q", format)
	}
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "decode snapshot", err)
	}
	return nil
}

// LoadFile reads a snapshot previously written by WriteFile.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, fmt.Sprintf("snapshot file %s", path), err)
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap := NewSnapshot()
	if err := Unmarshal(data, snap, FormatForPath(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// WriteFile stores the snapshot as JSON or YAML depending on the extension.
func (s *Snapshot) WriteFile(path string) error {
	data, err := Marshal(s, FormatForPath(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}
