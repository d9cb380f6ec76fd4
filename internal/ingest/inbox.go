// Package ingest watches an inbox directory for JSON block files dropped by
// agents and feeds them through the memory bank. Processed files are moved
// to a processed/ subdirectory, rejects to failed/.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Subdirectories files are moved into after processing.
const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Inbox is the drop-directory abstraction: list pending files, read them,
// and file them away once handled.
type Inbox struct {
	root string // absolute path to the inbox directory
}

// NewInbox creates an Inbox rooted at dir, creating the directory tree if
// needed.
func NewInbox(dir string) (*Inbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve inbox: %w", err)
	}
	for _, d := range []string{abs, filepath.Join(abs, processedDir), filepath.Join(abs, failedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("ingest: create %s: %w", d, err)
		}
	}
	return &Inbox{root: abs}, nil
}

// Root returns the absolute inbox path.
func (in *Inbox) Root() string {
	return in.root
}

// safePath resolves name against the inbox root and rejects anything that
// escapes it (directory traversal).
func (in *Inbox) safePath(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("ingest: invalid file name: %s", name)
	}
	return filepath.Join(in.root, cleaned), nil
}

// Pending returns the names of unprocessed .json files in the inbox, not
// recursing into the processed/failed subdirectories.
func (in *Inbox) Pending() ([]string, error) {
	entries, err := os.ReadDir(in.root)
	if err != nil {
		return nil, fmt.Errorf("ingest: list inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Read returns the raw bytes of a pending file.
func (in *Inbox) Read(name string) ([]byte, error) {
	abs, err := in.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", name, err)
	}
	return data, nil
}

// Archive moves a handled file into processed/.
func (in *Inbox) Archive(name string) error {
	return in.move(name, processedDir)
}

// Reject moves a bad file into failed/ so it stops being retried but stays
// inspectable.
func (in *Inbox) Reject(name string) error {
	return in.move(name, failedDir)
}

func (in *Inbox) move(name, sub string) error {
	abs, err := in.safePath(name)
	if err != nil {
		return err
	}
	dest := filepath.Join(in.root, sub, filepath.Base(name))
	if err := os.Rename(abs, dest); err != nil {
		return fmt.Errorf("ingest: move %s to %s: %w", name, sub, err)
	}
	return nil
}
