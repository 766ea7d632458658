package studio

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
)

func newTestStudio(t *testing.T) *Studio {
	t.Helper()
	s, err := Open(t.TempDir(), log.New(io.Discard, "", 0), Options{
		Now: func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func createEpisode(t *testing.T, s *Studio, series, topic string) string {
	t.Helper()
	ep, err := s.CreateEpisode(context.Background(), map[string]any{
		"series": series,
		"topic":  topic,
		"title":  "Episode " + topic,
		"tags":   []any{"ignored"},
	})
	if err != nil {
		t.Fatalf("CreateEpisode: %v", err)
	}
	return ep.Episode
}

func TestOpenCreatesRoots(t *testing.T) {
	root := filepath.Join(t.TempDir(), "content")
	s, err := Open(root, nil, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, dir := range []string{s.SeriesRoot(), s.AssetsRoot()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
	}
}

func TestListEpisodesFilters(t *testing.T) {
	s := newTestStudio(t)
	ctx := context.Background()
	first := createEpisode(t, s, "demo", "one")
	createEpisode(t, s, "demo", "two")
	createEpisode(t, s, "other", "three")

	if _, err := s.UpdateEpisode(ctx, "demo", first, map[string]any{"content_status": "ready"}); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	all, err := s.ListEpisodes(EpisodeFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 episodes, got %d (%v)", len(all), err)
	}
	demo, _ := s.ListEpisodes(EpisodeFilter{Series: "demo"})
	if len(demo) != 2 {
		t.Fatalf("expected 2 demo episodes, got %d", len(demo))
	}
	ready, _ := s.ListEpisodes(EpisodeFilter{Status: "ready"})
	if len(ready) != 1 || ready[0].Episode != first {
		t.Fatalf("unexpected ready episodes %+v", ready)
	}
	if _, err := s.ListEpisodes(EpisodeFilter{Status: "bogus"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdateWorkflowProgress(t *testing.T) {
	s := newTestStudio(t)
	ctx := context.Background()
	name := createEpisode(t, s, "demo", "flow")

	ep, err := s.UpdateWorkflowProgress(ctx, "demo", name, "recorded", true)
	if err != nil {
		t.Fatalf("UpdateWorkflowProgress: %v", err)
	}
	workflow := ep.Metadata["workflow"].(map[string]any)
	if workflow["recorded"] != true || workflow["scripted"] != false {
		t.Fatalf("unexpected workflow %v", workflow)
	}
	if _, err := s.UpdateWorkflowProgress(ctx, "demo", name, "mastered", true); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}

func TestPipelineStatus(t *testing.T) {
	s := newTestStudio(t)
	ctx := context.Background()
	a := createEpisode(t, s, "demo", "a")
	b := createEpisode(t, s, "demo", "b")
	c := createEpisode(t, s, "demo", "c")

	if _, err := s.ScheduleRelease(ctx, "series/demo/"+a, "2025-07-01", ""); err != nil {
		t.Fatalf("ScheduleRelease: %v", err)
	}
	if _, err := s.ScheduleRelease(ctx, "series/demo/"+b, "2025-06-01", "launch"); err != nil {
		t.Fatalf("ScheduleRelease: %v", err)
	}
	if _, err := s.UpdateEpisode(ctx, "demo", c, map[string]any{
		"content_status": "released",
		"release":        map[string]any{"target_date": "2025-01-01"},
		"workflow":       map[string]any{"published": true},
	}); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	p, err := s.PipelineStatus()
	if err != nil {
		t.Fatalf("PipelineStatus: %v", err)
	}
	if p.Total != 3 || p.ByStatus["staged"] != 2 || p.ByStatus["released"] != 1 || p.ByStatus["draft"] != 0 {
		t.Fatalf("unexpected counts %+v", p)
	}
	if p.Workflow["published"] != 1 || p.Workflow["scripted"] != 0 {
		t.Fatalf("unexpected workflow counts %v", p.Workflow)
	}
	if len(p.Upcoming) != 2 || p.Upcoming[0].TargetDate != "2025-06-01" || p.Upcoming[1].Path != "series/demo/"+a {
		t.Fatalf("unexpected upcoming %+v", p.Upcoming)
	}
}

func TestScheduleReleaseScenario(t *testing.T) {
	s := newTestStudio(t)
	ctx := context.Background()
	name := createEpisode(t, s, "demo", "launch")
	path := "series/demo/" + name

	if _, err := s.ScheduleRelease(ctx, path, "2025-06-15", "group-a"); err != nil {
		t.Fatalf("ScheduleRelease: %v", err)
	}
	queue, err := s.ReleaseQueue()
	if err != nil {
		t.Fatalf("ReleaseQueue: %v", err)
	}
	staged := queue["staged"].([]any)
	if len(staged) != 1 || staged[0].(map[string]any)["path"] != path {
		t.Fatalf("path missing from staged: %v", staged)
	}
	items := queue["release_groups"].(map[string]any)["group-a"].(map[string]any)["items"].([]any)
	if len(items) != 1 || items[0] != path {
		t.Fatalf("path missing from group items: %v", items)
	}
}

func TestGenerationStubs(t *testing.T) {
	s := newTestStudio(t)
	ctx := context.Background()
	name := createEpisode(t, s, "demo", "gen")
	if _, err := s.UpdateEpisode(ctx, "demo", name, map[string]any{"tags": []any{"go", "yaml"}}); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	res, err := s.GenerateDescription("demo", name)
	if err != nil {
		t.Fatalf("GenerateDescription: %v", err)
	}
	if res.Status != GenerationStatusNotImplemented || res.Context.Title != "Episode gen" || len(res.Context.Tags) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = s.GenerateSocialPosts("demo", name, []string{"LinkedIn", "myspace"})
	if err != nil {
		t.Fatalf("GenerateSocialPosts: %v", err)
	}
	if len(res.Context.Platforms) != 1 || res.Context.Platforms[0] != "linkedin" {
		t.Fatalf("unexpected platforms %v", res.Context.Platforms)
	}

	if _, err := s.GenerateDescription("demo", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
