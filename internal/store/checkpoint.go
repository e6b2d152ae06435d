package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

const checkpointFile = "data.ckpt"

// saveCheckpoint serializes data to dataDir/data.ckpt via a temp-file +
// fsync + atomic rename, so a crash mid-write leaves the previous
// checkpoint (or none) intact — never a half-written one.
//
// renameio.WriteFile does the "write to a sibling temp path, fsync it,
// fsync the directory, rename over the destination" dance, which also
// buys a directory fsync a hand-rolled os.Create+os.Rename would skip.
func saveCheckpoint(dataDir string, data map[string]Value) error {
	path := filepath.Join(dataDir, checkpointFile)
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := renameio.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// loadCheckpoint loads dataDir/data.ckpt if present. Any failure to open or
// deserialize it is treated as no valid checkpoint existing — start from an
// empty store and let the WAL carry everything.
func loadCheckpoint(dataDir string) map[string]Value {
	path := filepath.Join(dataDir, checkpointFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return map[string]Value{}
	}

	var data map[string]Value
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]Value{}
	}
	return data
}
