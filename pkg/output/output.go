// Package output persists execution results as one file per model.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minhyannv/prompt-tester/pkg/thinking"
)

// DefaultDir is where results are written, relative to the working directory.
const DefaultDir = "outputs"

var (
	// ErrInvalidName is returned for display names that cannot be used as a file name.
	ErrInvalidName = errors.New("invalid output name")
	// ErrWrite wraps filesystem failures while persisting a result.
	ErrWrite = errors.New("write output")
)

// Mode selects how much of a result is persisted.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeAll      Mode = "all"
	ModeUserOnly Mode = "user-only"
)

// Modes lists the accepted values in help order.
var Modes = []Mode{ModeNone, ModeAll, ModeUserOnly}

// ParseMode validates a --save value.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.TrimSpace(s))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid save mode %q (choose from none, all, user-only)", s)
}

// Saver writes results under Dir according to Mode.
type Saver struct {
	Dir  string
	Mode Mode
}

// Enabled reports whether Save writes anything.
func (s Saver) Enabled() bool {
	return s.Mode == ModeAll || s.Mode == ModeUserOnly
}

// Save writes text to <Dir>/<name>.md, replacing any previous file. In
// user-only mode the first thinking region is dropped. The text is trimmed.
// It returns the written path, relative when Dir is.
func (s Saver) Save(name, text string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	path, err := s.pathFor(name)
	if err != nil {
		return "", err
	}

	if s.Mode == ModeUserOnly {
		text = thinking.Strip(text)
	}
	text = strings.TrimSpace(text)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil { //nolint:gosec // results are meant to be readable
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return path, nil
}

// pathFor maps a display name to a file inside Dir.
func (s Saver) pathFor(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || hasParentTraversal(name) {
		return "", fmt.Errorf("%w: %q must not contain path separators or traversal", ErrInvalidName, name)
	}

	dir := s.Dir
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	rel, err := filepath.Rel(root, filepath.Join(root, name+".md"))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidName, name, root)
	}
	return filepath.Join(dir, rel), nil
}

// hasParentTraversal reports whether a path contains a parent directory segment.
func hasParentTraversal(p string) bool {
	for _, part := range strings.Split(filepath.Clean(p), string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	return false
}
