package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lessoncast/readalong/internal/cache"
)

// DirLoader serves timing documents from a local directory, treating
// content IDs as file names relative to the root. Used for authoring
// workflows and offline corpora.
type DirLoader struct {
	root   string
	logger *log.Logger
}

// NewDirLoader creates a loader over an existing directory.
func NewDirLoader(root string, logger *log.Logger) (*DirLoader, error) {
	if logger == nil {
		logger = log.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fetch: resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fetch: stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fetch: root %q is not a directory", root)
	}

	return &DirLoader{root: abs, logger: logger}, nil
}

// Root returns the absolute corpus root.
func (l *DirLoader) Root() string {
	return l.root
}

// FetchTiming reads <root>/<contentID>.json; the extension is added when
// the ID has none. IDs may use subdirectories but cannot escape the root.
func (l *DirLoader) FetchTiming(ctx context.Context, contentID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.FromSlash(contentID)
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("fetch: timing %q escapes the corpus root", contentID)
	}

	fullPath := filepath.Join(l.root, clean)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("fetch: timing %q: %w", contentID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch: read %s: %w", fullPath, err)
	}

	l.logger.Debug("loaded timing document",
		"content", contentID, "path", fullPath, "bytes", len(data))
	return data, nil
}

// List returns the content IDs available under the root: relative paths
// of .json files with the extension stripped, sorted. Hidden directories
// are skipped.
func (l *DirLoader) List() ([]string, error) {
	var ids []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != l.root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel))))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: list corpus: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ cache.Loader = (*DirLoader)(nil)
