package dedup

import (
	"encoding/json"
	"fmt"
	"os"

	"typeporter/pkg/storage"
)

// RenameMap maps archive-relative asset paths to their canonical
// media filenames. Keys use forward slashes regardless of platform so
// the map stays portable alongside the archive.
type RenameMap map[string]string

// Save writes the map as indented JSON via an atomic replace
func (m RenameMap) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode rename map: %w", err)
	}
	return storage.WriteFileAtomic(path, append(data, '\n'))
}

// LoadRenameMap reads a map previously written by Save
func LoadRenameMap(path string) (RenameMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m RenameMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse rename map %s: %w", path, err)
	}
	return m, nil
}
