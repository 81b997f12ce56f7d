// Package workspace discovers, indexes and watches the PHP files of a project.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rlch/phpintel"
)

// File is a PHP source file of the workspace.
type File struct {
	// Path is the absolute file system path.
	Path string
	// URI is the file URI used as the index key.
	URI string
	// Rel is the path relative to the config directory, slash separated.
	Rel string
}

// Loader finds and reads the PHP files selected by a config.
type Loader struct {
	cfg *phpintel.Config
}

// NewLoader creates a loader for the roots, extensions and excludes of cfg.
func NewLoader(cfg *phpintel.Config) *Loader {
	return &Loader{cfg: cfg}
}

// Config returns the loader's configuration.
func (l *Loader) Config() *phpintel.Config {
	return l.cfg
}

// Discover walks every include root and returns the PHP files, sorted by path.
// Hidden directories are skipped; vendor is not, so library symbols resolve.
func (l *Loader) Discover(ctx context.Context) ([]File, error) {
	seen := make(map[string]bool)

	var files []File

	for _, root := range l.cfg.Roots() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || l.cfg.Excluded(l.rel(path))) {
					return filepath.SkipDir
				}

				return nil
			}

			if !d.Type().IsRegular() || seen[path] || !l.Accepts(path) {
				return nil
			}

			seen[path] = true
			files = append(files, l.file(path))

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", root, err)
		}
	}

	slices.SortFunc(files, func(a, b File) int {
		return strings.Compare(a.Path, b.Path)
	})

	return files, nil
}

// Accepts reports whether a path is a PHP file the config selects.
func (l *Loader) Accepts(path string) bool {
	if !l.cfg.IsSource(path) || !l.underRoot(path) {
		return false
	}

	return !l.cfg.Excluded(l.rel(path))
}

// Read returns the content of a file.
func (l *Loader) Read(f File) ([]byte, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Rel, err)
	}

	return content, nil
}

// FileForPath builds a File from an absolute path.
func (l *Loader) FileForPath(path string) File {
	return l.file(path)
}

// FileForURI builds a File from a file URI.
func (l *Loader) FileForURI(uri string) (File, error) {
	path, err := phpintel.URIToPath(uri)
	if err != nil {
		return File{}, err
	}

	return File{Path: path, URI: uri, Rel: l.rel(path)}, nil
}

func (l *Loader) file(path string) File {
	return File{
		Path: path,
		URI:  phpintel.PathToURI(path),
		Rel:  l.rel(path),
	}
}

func (l *Loader) rel(path string) string {
	rel, err := filepath.Rel(l.cfg.Dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

func (l *Loader) underRoot(path string) bool {
	for _, root := range l.cfg.Roots() {
		rel, err := filepath.Rel(root, path)
		if err == nil && !strings.HasPrefix(filepath.ToSlash(rel), "../") {
			return true
		}
	}

	return false
}
