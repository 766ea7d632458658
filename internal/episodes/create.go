package episodes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/metadata"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/models"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/pathutil"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/yamlstore"
)

// ScaffoldDirs are created inside every new episode folder.
var ScaffoldDirs = []string{"raw/camera", "raw/screen", "audio", "assets", "exports"}

// CreateRequest holds the validated inputs of a new episode.
type CreateRequest struct {
	Series      string
	Topic       string
	Title       string
	Description string
	TargetDate  string
}

// ParseCreateRequest validates loosely typed input (a decoded JSON object)
// and returns the sanitized request. Every problem is reported at once.
// Both "targetDate" and "target_date" are accepted for the release date.
func ParseCreateRequest(input map[string]any) (CreateRequest, error) {
	var req CreateRequest
	var errs []string

	series, _ := input["series"].(string)
	if !pathutil.IsValidSeriesName(series) {
		errs = append(errs, "Invalid series name: use 1-100 letters, numbers, spaces, hyphens or underscores")
	}
	req.Series = series

	topic, ok := input["topic"].(string)
	req.Topic = pathutil.Slugify(topic)
	if !ok || !pathutil.IsValidSlug(req.Topic) {
		errs = append(errs, "Topic must contain at least one letter or number")
	}

	title, msg := metadata.ValidateTitle(input["title"])
	if msg != "" {
		errs = append(errs, msg)
	}
	req.Title = title

	if raw, ok := input["description"]; ok && raw != nil {
		description, msg := metadata.ValidateDescription(raw)
		if msg != "" {
			errs = append(errs, msg)
		}
		req.Description = description
	}

	rawDate, ok := input["targetDate"]
	if !ok {
		rawDate = input["target_date"]
	}
	date, msg := metadata.ValidateTargetDate(rawDate)
	if msg != "" {
		errs = append(errs, msg)
	}
	req.TargetDate = date

	if len(errs) > 0 {
		return CreateRequest{}, apperr.Invalid(errs...)
	}
	return req, nil
}

// FolderName returns the folder a topic would get on the given day.
func FolderName(day time.Time, topic string) string {
	return day.Format(time.DateOnly) + "-" + pathutil.Slugify(topic)
}

// Create scaffolds a new episode folder dated today. It fails with a
// conflict when the folder already exists.
func (r *Repository) Create(ctx context.Context, req CreateRequest) (models.Episode, error) {
	req, err := ParseCreateRequest(map[string]any{
		"series":      req.Series,
		"topic":       req.Topic,
		"title":       req.Title,
		"description": req.Description,
		"target_date": req.TargetDate,
	})
	if err != nil {
		return models.Episode{}, err
	}

	today := r.now()
	name := FolderName(today, req.Topic)
	seriesDir, err := pathutil.Resolve(r.seriesRoot, req.Series)
	if err != nil {
		return models.Episode{}, err
	}
	dir := filepath.Join(seriesDir, name)

	err = r.store.Locked(ctx, func() error {
		if _, err := os.Stat(dir); err == nil {
			return apperr.Conflict(fmt.Sprintf("episode folder %s/%s already exists", req.Series, name))
		}
		if err := os.MkdirAll(seriesDir, 0o755); err != nil {
			return err
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			if errors.Is(err, os.ErrExist) {
				return apperr.Conflict(fmt.Sprintf("episode folder %s/%s already exists", req.Series, name))
			}
			return err
		}
		return r.scaffold(dir, today, req)
	})
	if err != nil {
		return models.Episode{}, err
	}

	r.logger.Printf("created episode %s/%s", req.Series, name)
	return r.load(dir, req.Series, name)
}

func (r *Repository) scaffold(dir string, today time.Time, req CreateRequest) error {
	for _, sub := range ScaffoldDirs {
		if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(sub)), 0o755); err != nil {
			return err
		}
	}

	doc, err := yamlstore.FromValue(newSeed(today, req))
	if err != nil {
		return fmt.Errorf("encode seed metadata: %w", err)
	}
	if err := yamlstore.Write(filepath.Join(dir, MetadataFile), doc); err != nil {
		return err
	}

	script := fmt.Sprintf("# %s\n\n## Hook\n\n## Outline\n\n## Script\n\n## Call to Action\n", req.Title)
	if err := yamlstore.WriteFile(filepath.Join(dir, "script.md"), []byte(script)); err != nil {
		return err
	}
	notes := fmt.Sprintf("# Notes: %s\n\n## Research\n\n## Links\n\n## Ideas\n", req.Title)
	return yamlstore.WriteFile(filepath.Join(dir, "notes.md"), []byte(notes))
}

type seedMetadata struct {
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	ContentStatus string         `yaml:"content_status"`
	Created       string         `yaml:"created"`
	Series        seedSeries     `yaml:"series"`
	Tags          []string       `yaml:"tags"`
	Recording     seedRecording  `yaml:"recording"`
	Workflow      seedWorkflow   `yaml:"workflow"`
	Release       seedRelease    `yaml:"release"`
	Distribution  map[string]any `yaml:"distribution"`
	Analytics     map[string]any `yaml:"analytics"`
}

type seedSeries struct {
	Name string `yaml:"name"`
	Part string `yaml:"part"`
}

type seedRecording struct {
	Date     string `yaml:"date"`
	Duration string `yaml:"duration"`
	Location string `yaml:"location"`
}

type seedWorkflow struct {
	Scripted         bool `yaml:"scripted"`
	Recorded         bool `yaml:"recorded"`
	Edited           bool `yaml:"edited"`
	ThumbnailCreated bool `yaml:"thumbnail_created"`
	Uploaded         bool `yaml:"uploaded"`
	Published        bool `yaml:"published"`
}

type seedRelease struct {
	TargetDate   string   `yaml:"target_date"`
	ReleaseGroup string   `yaml:"release_group"`
	DependsOn    []string `yaml:"depends_on"`
	Notes        string   `yaml:"notes"`
}

func newSeed(today time.Time, req CreateRequest) seedMetadata {
	return seedMetadata{
		Title:         req.Title,
		Description:   req.Description,
		ContentStatus: metadata.StatusDraft,
		Created:       today.Format(time.DateOnly),
		Series:        seedSeries{Name: req.Series},
		Tags:          []string{},
		Release: seedRelease{
			TargetDate: req.TargetDate,
			DependsOn:  []string{},
		},
		Distribution: map[string]any{},
		Analytics:    map[string]any{},
	}
}
