package source

import (
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"webrag/internal/port"
)

// DirectorySource walks a directory tree and yields one document per
// matching text file, with a file:// source URL. Include and exclude
// patterns use doublestar glob syntax against paths relative to the root.
type DirectorySource struct {
	paths []string
	pos   int
}

func NewDirectorySource(root string, includes, excludes []string) (*DirectorySource, error) {
	if len(includes) == 0 {
		includes = []string{"**/*.txt", "**/*.md", "**/*.html"}
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if matchesAny(excludes, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(includes, relPath) && !matchesAny(excludes, relPath) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DirectorySource{paths: paths}, nil
}

func (s *DirectorySource) Next() (port.RawDocument, error) {
	if s.pos >= len(s.paths) {
		return port.RawDocument{}, io.EOF
	}

	path := s.paths[s.pos]
	s.pos++

	data, err := os.ReadFile(path)
	if err != nil {
		return port.RawDocument{}, err
	}

	return port.RawDocument{
		SourceURL: "file://" + path,
		Text:      string(data),
		Metadata:  map[string]string{"filename": filepath.Base(path)},
	}, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
