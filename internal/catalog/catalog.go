// Package catalog lists the weight files available under a models directory
// and resolves the model_path values clients send to absolute paths.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modelreg/internal/common/fsutil"
	"modelreg/pkg/types"
)

// WeightExts are the file extensions recognized as model weights.
var WeightExts = []string{".gguf", ".bin", ".ggml"}

// Catalog is rooted at a models directory. A zero Dir means relative paths
// resolve against the working directory and Scan returns nothing.
type Catalog struct {
	dir string
}

// New returns a catalog rooted at dir ('~' is expanded). A missing directory
// is accepted and scans as empty; an existing non-directory is rejected.
func New(dir string) (*Catalog, error) {
	if strings.TrimSpace(dir) == "" {
		return &Catalog{}, nil
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if _, err := os.Stat(abs); err == nil && !fsutil.IsDir(abs) {
		return nil, fmt.Errorf("models dir %s is not a directory", abs)
	}
	return &Catalog{dir: abs}, nil
}

// Dir returns the absolute models directory, or "" when unset.
func (c *Catalog) Dir() string { return c.dir }

// Models scans the models directory.
func (c *Catalog) Models() ([]types.ModelFile, error) {
	if c.dir == "" {
		return []types.ModelFile{}, nil
	}
	return ScanDir(c.dir)
}

// Resolve turns a client supplied model path into an absolute path. Absolute
// paths pass through, '~' is expanded and anything else is joined to the
// models directory. Existence is not checked; the engine reports that.
func (c *Catalog) Resolve(path string) (string, error) {
	p, err := fsutil.ExpandHome(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("empty model path")
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	if c.dir != "" {
		return filepath.Join(c.dir, p), nil
	}
	return filepath.Abs(p)
}

// ScanDir lists weight files directly inside dir, sorted by name.
// ID is the full filename (including extension); Path is the absolute file path.
func ScanDir(dir string) ([]types.ModelFile, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	models := make([]types.ModelFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !fsutil.HasExt(e.Name(), WeightExts...) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		models = append(models, types.ModelFile{
			ID:        e.Name(),
			Path:      filepath.Join(abs, e.Name()),
			SizeBytes: info.Size(),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}
