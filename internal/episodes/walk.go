package episodes

import (
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// MetadataFile marks a directory as an episode.
const MetadataFile = "metadata.yml"

// Location is an episode folder discovered by Walk.
type Location struct {
	Dir     string
	Series  string
	Episode string
}

// Walk lazily yields every episode folder below seriesRoot.
//
// A directory that directly contains metadata.yml is a leaf: it is yielded
// and never descended into. Any other directory is searched recursively.
// The series of an episode is the path segment immediately below seriesRoot.
// Hidden directories are skipped. Directories that cannot be read are
// reported to onError (when non-nil) and skipped.
func Walk(seriesRoot string, onError func(dir string, err error)) iter.Seq[Location] {
	return func(yield func(Location) bool) {
		walkDir(seriesRoot, seriesRoot, "", onError, yield)
	}
}

func walkDir(root, dir, series string, onError func(string, error), yield func(Location) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if onError != nil {
			onError(dir, err)
		}
		return true
	}

	if dir != root && containsMetadata(entries) {
		return yield(Location{Dir: dir, Series: series, Episode: filepath.Base(dir)})
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childSeries := series
		if dir == root {
			childSeries = entry.Name()
		}
		if !walkDir(root, filepath.Join(dir, entry.Name()), childSeries, onError, yield) {
			return false
		}
	}
	return true
}

func containsMetadata(entries []os.DirEntry) bool {
	for _, entry := range entries {
		if entry.Name() == MetadataFile && !entry.IsDir() {
			return true
		}
	}
	return false
}
