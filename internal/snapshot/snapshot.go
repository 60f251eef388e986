package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"webshop/internal/model"
)

// State is everything needed to rebuild the shop: the catalog with its
// current stock and every order placed so far.
type State struct {
	Products []model.Product `json:"products"`
	Orders   []model.Order   `json:"orders"`
}

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st State) error
}

// NewID names a snapshot after the moment it was taken. IDs sort by time.
func NewID(now time.Time) string {
	return now.UTC().Format("20060102T150405.000000000Z")
}

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

func (f *FilesystemSnapshotter) path(snapshotID string) string {
	return filepath.Join(f.baseDir, snapshotID, "state.json")
}

// WriteSnapshot writes state.json through a temp file so a crash never leaves
// a half-written snapshot behind.
func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st State) error {
	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	file := f.path(snapshotID)
	tmp := file + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&st); err != nil {
		out.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot. A missing snapshot yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func (f *FilesystemSnapshotter) ReadSnapshot(snapshotID string) (State, error) {
	data, err := os.ReadFile(f.path(snapshotID))
	if err != nil {
		return State{}, fmt.Errorf("read snapshot: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return st, nil
}
