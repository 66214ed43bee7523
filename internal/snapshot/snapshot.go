// Package snapshot persists source collections as JSON files in the data folder.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/elonfeng/curator/pkg/content"
)

// ErrNotFound is returned by Load when no snapshot exists at the resolved path.
var ErrNotFound = errors.New("snapshot not found")

// Path resolves {dataFolder}/{runID}/{name}, or {dataFolder}/{name} for an empty run id.
func Path(dataFolder, runID, name string) string {
	if runID == "" {
		return filepath.Join(dataFolder, name)
	}
	return filepath.Join(dataFolder, runID, name)
}

// Save overwrites the snapshot with data. The write goes through a temp file
// in the same directory so readers never see a partial file.
func Save(dataFolder, runID, name string, data content.Collection) (string, error) {
	path := Path(dataFolder, runID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data folder: %w", err)
	}
	if data == nil {
		data = content.Collection{}
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename snapshot %s: %w", path, err)
	}
	return path, nil
}

// Load reads a snapshot written by Save.
func Load(dataFolder, runID, name string) (content.Collection, error) {
	path := Path(dataFolder, runID, name)
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	data := content.Collection{}
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	// the key is the item's identity; records may omit the id
	for key, it := range data {
		switch it.ID {
		case "":
			it.ID = key
			data[key] = it
		case key:
		default:
			return nil, fmt.Errorf("decode snapshot %s: key %q holds item %q", path, key, it.ID)
		}
	}
	return data, nil
}
