// Package dataset validates the mortgage data layout on disk and moves it
// into blob storage for training runs.
package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// File is one entry in a dataset manifest: a slash-separated path relative
// to the dataset root, and its size in bytes.
type File struct {
	Path string
	Size int64
}

// Layout is a validated mortgage dataset directory.
type Layout struct {
	Root       string
	Files      []File
	TotalBytes int64
	AcqFiles   int
	PerfFiles  int
}

// Inspect walks dir and checks it against the layout the processing script
// expects: a non-empty acq/ directory, a non-empty perf/ directory and a
// names.csv lender mapping at the root. Returns the full file manifest.
func Inspect(dir string) (*Layout, error) {
	files, err := ListDir(dir)
	if err != nil {
		return nil, err
	}

	layout := &Layout{Root: dir, Files: files}
	hasNames := false
	for _, f := range files {
		layout.TotalBytes += f.Size
		switch {
		case strings.HasPrefix(f.Path, "acq/"):
			layout.AcqFiles++
		case strings.HasPrefix(f.Path, "perf/"):
			layout.PerfFiles++
		case f.Path == "names.csv":
			hasNames = true
		}
	}

	if layout.AcqFiles == 0 {
		return nil, fmt.Errorf("%s: acq/ is missing or empty; expected acquisition files", dir)
	}
	if layout.PerfFiles == 0 {
		return nil, fmt.Errorf("%s: perf/ is missing or empty; expected performance files", dir)
	}
	if !hasNames {
		return nil, fmt.Errorf("%s: names.csv not found; expected the lender name mapping", dir)
	}
	return layout, nil
}

// ListDir walks dir and returns every regular file as a manifest entry,
// sorted by path so manifests are deterministic.
func ListDir(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s contains no files", dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
