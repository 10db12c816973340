package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// WriteError reports a filesystem failure while writing an output file.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Encode serializes doc as UTF-8 JSON with a trailing newline. HTML escaping
// is off so non-ASCII text passes through untouched.
func Encode(doc any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON encodes doc fully in memory, creates the parent directory when
// missing and writes the file in a single call, replacing any previous content.
func WriteJSON(path string, doc any, indent bool) (int, error) {
	data, err := Encode(doc, indent)
	if err != nil {
		return 0, &WriteError{Path: path, Op: "encode", Err: err}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return 0, &WriteError{Path: path, Op: "mkdir", Err: err}
		}
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return 0, &WriteError{Path: path, Op: "write", Err: err}
	}
	return len(data), nil
}

// ReadJSON loads a previously written file into dest.
func ReadJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
