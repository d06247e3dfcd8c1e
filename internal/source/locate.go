// Package source enumerates the concrete CSV files behind a table source.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/sqlmerger/internal/config"
)

// File is one input file of a CSV source.
type File struct {
	Path string
	Name string
	// Root is the directory the file was found under, empty for a source
	// naming the file itself.
	Root string
}

// NotFoundError reports a source path that does not exist, or a directory
// without any matching file.
type NotFoundError struct {
	Path    string
	Pattern string
}

func (e *NotFoundError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("no file matching %q in %s", e.Pattern, e.Path)
	}
	return fmt.Sprintf("source not found: %s", e.Path)
}

// Locate expands the source path and lists its files.
//
// A file yields itself. A directory yields every file below it whose base
// name matches the source pattern, sorted by name then path. A missing path
// or an empty match is an error unless the source is marked missing-ok, in
// which case the result is empty.
func Locate(src config.CSVSource, expand func(string) (string, error)) ([]File, error) {
	path := src.Path
	if expand != nil {
		var err error
		if path, err = expand(src.Path); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return missing(src, &NotFoundError{Path: path})
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return []File{{Path: path, Name: filepath.Base(path)}}, nil
	}

	var files []File
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if src.Pattern == nil || src.Pattern.MatchString(d.Name()) {
			files = append(files, File{Path: p, Name: d.Name(), Root: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}

	if len(files) == 0 {
		return missing(src, &NotFoundError{Path: path, Pattern: src.PatternText})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Name != files[j].Name {
			return files[i].Name < files[j].Name
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func missing(src config.CSVSource, err *NotFoundError) ([]File, error) {
	if src.MissingOK {
		return nil, nil
	}
	return nil, err
}
