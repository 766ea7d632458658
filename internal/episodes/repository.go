// Package episodes discovers, reads, creates and updates episode folders
// under the series root.
package episodes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/metadata"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/models"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/pathutil"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/yamlstore"
)

// SeriesDir is the series root relative to the repository root.
const SeriesDir = "series"

// Repository gives access to the episodes of one content repository.
type Repository struct {
	root       string
	seriesRoot string
	store      *yamlstore.Store
	logger     *log.Logger
	now        func() time.Time
}

// Option customizes a Repository.
type Option func(*Repository)

// WithClock overrides the clock used to date new episode folders.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a repository rooted at root; episodes live in
// root/series.
func NewRepository(root string, store *yamlstore.Store, logger *log.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = filepath.Clean(root)
	}
	r := &Repository{
		root:       absRoot,
		seriesRoot: filepath.Join(absRoot, SeriesDir),
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the repository root.
func (r *Repository) Root() string { return r.root }

// SeriesRoot returns the directory holding all series.
func (r *Repository) SeriesRoot() string { return r.seriesRoot }

// Scan discovers every episode and reads its metadata. Episodes whose
// metadata cannot be read are logged and left out. The result is sorted by
// episode folder name, then series.
func (r *Repository) Scan() ([]models.Episode, error) {
	if _, err := os.Stat(r.seriesRoot); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Episode{}, nil
		}
		return nil, err
	}

	episodes := []models.Episode{}
	onError := func(dir string, err error) {
		r.logger.Printf("walk error for %s: %v", dir, err)
	}
	for loc := range Walk(r.seriesRoot, onError) {
		doc, err := yamlstore.Read(filepath.Join(loc.Dir, MetadataFile))
		if err != nil {
			r.logger.Printf("metadata error for %s: %v", loc.Dir, err)
			continue
		}
		meta, err := yamlstore.ToMap(doc)
		if err != nil {
			r.logger.Printf("metadata decode error for %s: %v", loc.Dir, err)
			continue
		}
		episodes = append(episodes, models.Episode{
			Path:     pathutil.Relative(r.root, loc.Dir),
			Series:   loc.Series,
			Episode:  loc.Episode,
			Metadata: meta,
		})
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].Episode == episodes[j].Episode {
			return episodes[i].Series < episodes[j].Series
		}
		return episodes[i].Episode < episodes[j].Episode
	})
	return episodes, nil
}

// Locate resolves a (series, episode) pair to its folder. The folder must
// exist, stay within the series root and hold a metadata.yml.
func (r *Repository) Locate(series, episode string) (string, error) {
	if !pathutil.IsSafeSegment(series) || !pathutil.IsSafeSegment(episode) {
		return "", fmt.Errorf("%w: %s/%s", apperr.ErrTraversal, series, episode)
	}
	dir, err := pathutil.Resolve(r.seriesRoot, series+"/"+episode)
	if err != nil {
		return "", err
	}
	if !isFile(filepath.Join(dir, MetadataFile)) {
		return "", apperr.NotFound(fmt.Sprintf("episode %s/%s", series, episode))
	}
	return dir, nil
}

// LocatePath resolves a repository-relative episode path such as
// "series/demo/2025-01-01-intro" and returns the folder with its series and
// episode names.
func (r *Repository) LocatePath(rel string) (dir, series, episode string, err error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", "", "", apperr.Invalidf("Episode path is required")
	}
	dir, err = pathutil.Resolve(r.root, rel)
	if err != nil {
		return "", "", "", err
	}
	inner := pathutil.Relative(r.seriesRoot, dir)
	if inner == "" || !pathutil.IsPathWithinRoot(r.seriesRoot, dir) {
		return "", "", "", fmt.Errorf("%w: %s is not an episode path", apperr.ErrTraversal, rel)
	}
	if !isFile(filepath.Join(dir, MetadataFile)) {
		return "", "", "", apperr.NotFound("episode " + rel)
	}
	series, _, _ = strings.Cut(inner, "/")
	return dir, series, filepath.Base(dir), nil
}

// Get returns an episode with its metadata and immediate files.
func (r *Repository) Get(series, episode string) (models.Episode, error) {
	dir, err := r.Locate(series, episode)
	if err != nil {
		return models.Episode{}, err
	}
	return r.load(dir, series, episode)
}

// Update validates a partial metadata update, deep-merges it into the
// stored document and returns the refreshed episode.
func (r *Repository) Update(ctx context.Context, series, episode string, updates map[string]any) (models.Episode, error) {
	dir, err := r.Locate(series, episode)
	if err != nil {
		return models.Episode{}, err
	}

	res := metadata.Validate(updates)
	if !res.OK() {
		return models.Episode{}, apperr.Invalid(res.Errors...)
	}
	if len(res.Sanitized) == 0 {
		return models.Episode{}, apperr.ErrNoValidFields
	}

	patch, err := yamlstore.FromValue(res.Sanitized)
	if err != nil {
		return models.Episode{}, fmt.Errorf("encode update: %w", err)
	}

	if _, err := r.Modify(ctx, dir, func(root *yaml.Node) error {
		yamlstore.Merge(root, patch)
		return nil
	}); err != nil {
		return models.Episode{}, err
	}
	return r.load(dir, series, episode)
}

// Modify applies fn to the metadata document of the episode in dir under the
// store lock. The content status is defaulted to draft when fn leaves it
// missing or invalid.
func (r *Repository) Modify(ctx context.Context, dir string, fn func(root *yaml.Node) error) (*yaml.Node, error) {
	return r.store.Update(ctx, filepath.Join(dir, MetadataFile), nil, func(root *yaml.Node) error {
		if err := fn(root); err != nil {
			return err
		}
		if !metadata.IsValidStatus(yamlstore.GetString(root, "content_status")) {
			yamlstore.Set(root, "content_status", yamlstore.NewString(metadata.StatusDraft))
		}
		return nil
	})
}

func (r *Repository) load(dir, series, episode string) (models.Episode, error) {
	doc, err := yamlstore.Read(filepath.Join(dir, MetadataFile))
	if err != nil {
		return models.Episode{}, err
	}
	meta, err := yamlstore.ToMap(doc)
	if err != nil {
		return models.Episode{}, apperr.Parse(filepath.Join(dir, MetadataFile), err)
	}
	files, err := listFiles(dir)
	if err != nil {
		return models.Episode{}, err
	}
	return models.Episode{
		Path:     pathutil.Relative(r.root, dir),
		Series:   series,
		Episode:  episode,
		Metadata: meta,
		Files:    files,
	}, nil
}

func listFiles(dir string) ([]models.FileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]models.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		file := models.FileEntry{
			Name:     entry.Name(),
			Type:     models.TypeFile,
			Size:     info.Size(),
			Modified: info.ModTime().UTC().Round(time.Second),
			Ext:      strings.ToLower(filepath.Ext(entry.Name())),
		}
		if entry.IsDir() {
			file.Type = models.TypeDirectory
			file.Size = 0
			file.Ext = ""
		}
		files = append(files, file)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Type != files[j].Type {
			return files[i].Type == models.TypeDirectory
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	return files, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
