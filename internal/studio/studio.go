// Package studio is the transport-agnostic core shared by the HTTP API, the
// MCP server and the CLI. Each front-end translates its wire format into
// these calls and renders the results; none of them touches the filesystem
// directly.
package studio

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/assets"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/episodes"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/metadata"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/models"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/releases"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/yamlstore"
)

// LockFile serializes writers across processes sharing one repository root.
const LockFile = ".content-toolkit.lock"

// Options tune a Studio.
type Options struct {
	// UploadLimit caps uploaded asset files in bytes; zero keeps the default.
	UploadLimit int64
	// Now overrides the clock used to date new episodes.
	Now func() time.Time
}

// Studio bundles the episode repository, the release queue and the asset
// manager of one content repository.
type Studio struct {
	root     string
	episodes *episodes.Repository
	releases *releases.Service
	assets   *assets.Manager
	logger   *log.Logger
}

// Open prepares root (creating it and its series and assets folders when
// missing) and returns a Studio over it.
func Open(root string, logger *log.Logger, opts Options) (*Studio, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	for _, dir := range []string{absRoot, filepath.Join(absRoot, episodes.SeriesDir), filepath.Join(absRoot, assets.Dir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	store := yamlstore.NewStore(filepath.Join(absRoot, LockFile))
	var repoOpts []episodes.Option
	if opts.Now != nil {
		repoOpts = append(repoOpts, episodes.WithClock(opts.Now))
	}
	repo := episodes.NewRepository(absRoot, store, logger, repoOpts...)

	return &Studio{
		root:     absRoot,
		episodes: repo,
		releases: releases.New(repo, store, logger),
		assets:   assets.NewManager(filepath.Join(absRoot, assets.Dir), logger, assets.WithUploadLimit(opts.UploadLimit)),
		logger:   logger,
	}, nil
}

// Root returns the repository root.
func (s *Studio) Root() string { return s.root }

// SeriesRoot returns the directory holding every series.
func (s *Studio) SeriesRoot() string { return s.episodes.SeriesRoot() }

// AssetsRoot returns the assets directory.
func (s *Studio) AssetsRoot() string { return s.assets.Root() }

// UploadLimit returns the per-file upload cap in bytes.
func (s *Studio) UploadLimit() int64 { return s.assets.UploadLimit() }

// EpisodeFilter narrows ListEpisodes. Empty fields match everything.
type EpisodeFilter struct {
	Series string
	Status string
}

// ListEpisodes returns the discovered episodes, sorted by folder name.
func (s *Studio) ListEpisodes(filter EpisodeFilter) ([]models.Episode, error) {
	if filter.Status != "" && !metadata.IsValidStatus(filter.Status) {
		return nil, apperr.Invalidf("Invalid status. Must be one of: %s", strings.Join(metadata.Statuses, ", "))
	}
	all, err := s.episodes.Scan()
	if err != nil {
		return nil, err
	}
	if filter.Series == "" && filter.Status == "" {
		return all, nil
	}
	out := make([]models.Episode, 0, len(all))
	for _, ep := range all {
		if filter.Series != "" && ep.Series != filter.Series {
			continue
		}
		if filter.Status != "" && stringField(ep.Metadata, "content_status") != filter.Status {
			continue
		}
		out = append(out, ep)
	}
	return out, nil
}

// GetEpisode returns one episode with its files.
func (s *Studio) GetEpisode(series, episode string) (models.Episode, error) {
	return s.episodes.Get(series, episode)
}

// CreateEpisode validates loosely typed input and scaffolds the episode.
func (s *Studio) CreateEpisode(ctx context.Context, input map[string]any) (models.Episode, error) {
	req, err := episodes.ParseCreateRequest(input)
	if err != nil {
		return models.Episode{}, err
	}
	return s.episodes.Create(ctx, req)
}

// UpdateEpisode applies a partial metadata update.
func (s *Studio) UpdateEpisode(ctx context.Context, series, episode string, updates map[string]any) (models.Episode, error) {
	return s.episodes.Update(ctx, series, episode, updates)
}

// UpdateWorkflowProgress marks one workflow stage as completed or not.
func (s *Studio) UpdateWorkflowProgress(ctx context.Context, series, episode, stage string, completed bool) (models.Episode, error) {
	if !metadata.IsWorkflowStage(stage) {
		return models.Episode{}, apperr.Invalidf("Unknown workflow stage: %s. Must be one of: %s", stage, strings.Join(metadata.WorkflowStages, ", "))
	}
	return s.episodes.Update(ctx, series, episode, map[string]any{
		"workflow": map[string]any{stage: completed},
	})
}

// ReleaseQueue returns the release queue document.
func (s *Studio) ReleaseQueue() (map[string]any, error) {
	return s.releases.Queue()
}

// UpdateReleaseStatus sets the content status of the episode at path.
func (s *Studio) UpdateReleaseStatus(ctx context.Context, path, status string) error {
	return s.releases.UpdateStatus(ctx, path, status)
}

// ScheduleRelease stages the episode at path and returns the new queue.
func (s *Studio) ScheduleRelease(ctx context.Context, path, date, group string) (map[string]any, error) {
	return s.releases.Schedule(ctx, path, date, group)
}

// DistributionProfiles returns the distribution profiles document.
func (s *Studio) DistributionProfiles() (map[string]any, error) {
	return s.releases.DistributionProfiles()
}

// Pipeline summarizes where every episode stands.
type Pipeline struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Workflow map[string]int `json:"workflow"`
	Upcoming []Upcoming     `json:"upcoming"`
}

// Upcoming is an unreleased episode with a target date.
type Upcoming struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	TargetDate string `json:"target_date"`
}

// PipelineStatus counts episodes per content status and completed workflow
// stage and lists unreleased episodes with a target date, soonest first.
func (s *Studio) PipelineStatus() (Pipeline, error) {
	all, err := s.episodes.Scan()
	if err != nil {
		return Pipeline{}, err
	}
	p := Pipeline{
		Total:    len(all),
		ByStatus: map[string]int{},
		Workflow: map[string]int{},
		Upcoming: []Upcoming{},
	}
	for _, status := range metadata.Statuses {
		p.ByStatus[status] = 0
	}
	for _, stage := range metadata.WorkflowStages {
		p.Workflow[stage] = 0
	}

	for _, ep := range all {
		status := stringField(ep.Metadata, "content_status")
		if !metadata.IsValidStatus(status) {
			status = metadata.StatusDraft
		}
		p.ByStatus[status]++

		if workflow, ok := ep.Metadata["workflow"].(map[string]any); ok {
			for _, stage := range metadata.WorkflowStages {
				if done, _ := workflow[stage].(bool); done {
					p.Workflow[stage]++
				}
			}
		}

		release, _ := ep.Metadata["release"].(map[string]any)
		date := stringField(release, "target_date")
		if date == "" || status == metadata.StatusReleased {
			continue
		}
		p.Upcoming = append(p.Upcoming, Upcoming{
			Path:       ep.Path,
			Title:      stringField(ep.Metadata, "title"),
			Status:     status,
			TargetDate: date,
		})
	}
	sort.SliceStable(p.Upcoming, func(i, j int) bool {
		return p.Upcoming[i].TargetDate < p.Upcoming[j].TargetDate
	})
	return p, nil
}

// ListAssets returns the asset tree below sub, optionally filtered by a
// glob pattern.
func (s *Studio) ListAssets(sub, pattern string) (*models.AssetNode, error) {
	return s.assets.Tree(sub, pattern)
}

// AssetInfo describes one asset.
func (s *Studio) AssetInfo(path string) (models.AssetInfo, error) {
	return s.assets.Info(path)
}

// CreateAssetFolder creates name inside parent.
func (s *Studio) CreateAssetFolder(parent, name string) (string, error) {
	return s.assets.CreateFolder(parent, name)
}

// MoveAsset moves source to destination.
func (s *Studio) MoveAsset(source, destination string) (string, error) {
	return s.assets.Move(source, destination)
}

// RenameAsset renames source within its folder.
func (s *Studio) RenameAsset(source, name string) (string, error) {
	return s.assets.Rename(source, name)
}

// DeleteAsset removes a file or empty folder.
func (s *Studio) DeleteAsset(path string) error {
	return s.assets.Delete(path)
}

// UploadAsset stores r as dir/filename.
func (s *Studio) UploadAsset(dir, filename string, r io.Reader) (string, error) {
	return s.assets.Upload(dir, filename, r)
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
