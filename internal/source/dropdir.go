// Package source reads record batches from a drop directory and archives
// them once processed.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// ErrMalformedBatch marks a batch file that could not be parsed. The whole
// file is rejected.
var ErrMalformedBatch = errors.New("malformed batch")

// Reader reads one batch file.
type Reader interface {
	Read(path string) (model.Batch, error)
}

// ReadBatch parses a batch file: a JSON array of records.
func ReadBatch(path string) (model.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return DecodeBatch(data)
}

// DecodeBatch parses a JSON array of records.
func DecodeBatch(data []byte) (model.Batch, error) {
	var batch model.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	return batch, nil
}

// DropDir is a directory collectors deliver batch files into. Processed
// files move to an archive directory; failed files stay in place.
type DropDir struct {
	dir        string
	archiveDir string
	ext        string
}

// NewDropDir creates the drop and archive directories if needed.
func NewDropDir(dir, archiveDir, ext string) (*DropDir, error) {
	if ext == "" {
		ext = ".json"
	}
	for _, d := range []string{dir, archiveDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return &DropDir{dir: dir, archiveDir: archiveDir, ext: ext}, nil
}

// Dir returns the watched directory.
func (d *DropDir) Dir() string {
	return d.dir
}

// Pending lists batch files awaiting processing, oldest name first.
// Resource-fork files ("._*") and empty files are skipped.
func (d *DropDir) Pending() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !d.Accepts(e.Name()) || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		paths = append(paths, filepath.Join(d.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Accepts reports whether a file name looks like a batch file.
func (d *DropDir) Accepts(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, d.ext) && !strings.HasPrefix(base, "._")
}

// Read implements Reader.
func (d *DropDir) Read(path string) (model.Batch, error) {
	return ReadBatch(path)
}

// MarkProcessed moves path into the archive directory. Without an archive
// directory the file is removed.
func (d *DropDir) MarkProcessed(path string) error {
	if d.archiveDir == "" {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}
	dest := filepath.Join(d.archiveDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}
