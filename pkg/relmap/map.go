package relmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Map Serialization API
// =============================================================================

// MarshalMap converts a Map to pretty-printed JSON bytes.
func MarshalMap(m *Map) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeMapTo(m, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteMapFile writes a Map to a JSON file.
// The file is created with 0644 permissions.
func WriteMapFile(m *Map, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeMapTo(m, f)
}

// WriteMap writes a Map as JSON to an io.Writer.
func WriteMap(m *Map, w io.Writer) error {
	return writeMapTo(m, w)
}

// ReadMapFile reads a JSON file and returns the decoded, validated Map.
func ReadMapFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadMap(f)
}

// ReadMap decodes and validates a JSON reliability map from an io.Reader.
func ReadMap(r io.Reader) (*Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return UnmarshalMap(data)
}

func writeMapTo(m *Map, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
