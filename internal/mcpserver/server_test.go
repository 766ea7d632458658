package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

const testEpisode = "2025-05-01-intro"

func newTestHandlers(t *testing.T) *handlers {
	t.Helper()
	core, err := studio.Open(t.TempDir(), log.New(io.Discard, "", 0), studio.Options{
		Now: func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("open studio: %v", err)
	}
	return &handlers{core: core, logger: log.New(io.Discard, "", 0)}
}

func call(t *testing.T, h *handlers, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, tool := range h.toolset() {
		if tool.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		result, err := tool.Handler(context.Background(), req)
		if err != nil {
			t.Fatalf("%s returned a protocol error: %v", name, err)
		}
		return result
	}
	t.Fatalf("tool %s is not registered", name)
	return nil
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(result.Content))
	}
	block, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return block.Text
}

func ok(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	body := text(t, result)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", body)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return payload
}

func failed(t *testing.T, result *mcp.CallToolResult, fragment string) {
	t.Helper()
	body := text(t, result)
	if !result.IsError {
		t.Fatalf("expected error result, got %s", body)
	}
	if !strings.Contains(body, fragment) {
		t.Fatalf("expected %q in error, got %q", fragment, body)
	}
}

func createIntro(t *testing.T, h *handlers) {
	t.Helper()
	ok(t, call(t, h, "create_episode", map[string]any{
		"series":      "demo",
		"topic":       "Intro",
		"title":       "Introduction",
		"target_date": "2025-06-01",
	}))
}

func TestToolsetNamesAndSchemas(t *testing.T) {
	h := newTestHandlers(t)
	want := []string{
		"list_episodes", "get_episode", "create_episode", "update_episode_metadata",
		"update_workflow_progress", "get_release_queue", "update_release_status",
		"schedule_release", "get_pipeline_status", "get_distribution_profiles",
		"list_assets", "get_asset_info", "create_asset_folder", "move_asset",
		"delete_asset", "generate_description", "generate_social_posts",
	}
	tools := h.toolset()
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for i, tool := range tools {
		if tool.Tool.Name != want[i] {
			t.Fatalf("tool %d: expected %s, got %s", i, want[i], tool.Tool.Name)
		}
		if tool.Tool.Description == "" {
			t.Fatalf("tool %s has no description", tool.Tool.Name)
		}
	}
	if New(h.core, nil) == nil {
		t.Fatalf("expected a server")
	}
}

func TestEpisodeTools(t *testing.T) {
	h := newTestHandlers(t)
	createIntro(t, h)

	payload := ok(t, call(t, h, "list_episodes", map[string]any{"series": "demo"}))
	if payload["count"] != float64(1) {
		t.Fatalf("expected one episode, got %+v", payload)
	}

	payload = ok(t, call(t, h, "get_episode", map[string]any{"series": "demo", "episode": testEpisode}))
	meta, _ := payload["metadata"].(map[string]any)
	if meta["title"] != "Introduction" {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	payload = ok(t, call(t, h, "update_episode_metadata", map[string]any{
		"series":  "demo",
		"episode": testEpisode,
		"updates": map[string]any{"content_status": "ready"},
	}))
	if meta, _ := payload["metadata"].(map[string]any); meta["content_status"] != "ready" {
		t.Fatalf("expected status update, got %+v", payload)
	}

	payload = ok(t, call(t, h, "update_episode_metadata", map[string]any{
		"series":  "demo",
		"episode": testEpisode,
		"updates": `{"description":"From a string"}`,
	}))
	if meta, _ := payload["metadata"].(map[string]any); meta["description"] != "From a string" {
		t.Fatalf("expected JSON string updates to apply, got %+v", payload)
	}

	payload = ok(t, call(t, h, "update_workflow_progress", map[string]any{
		"series":    "demo",
		"episode":   testEpisode,
		"stage":     "recorded",
		"completed": true,
	}))
	if workflow, _ := payload["workflow"].(map[string]any); workflow["recorded"] != true {
		t.Fatalf("expected recorded stage, got %+v", payload)
	}
}

func TestEpisodeToolErrors(t *testing.T) {
	h := newTestHandlers(t)
	createIntro(t, h)

	failed(t, call(t, h, "create_episode", map[string]any{"series": "demo", "topic": "intro", "title": "Again"}), "already exists")
	failed(t, call(t, h, "get_episode", map[string]any{"series": "demo"}), "episode is required")
	failed(t, call(t, h, "get_episode", map[string]any{"series": "..", "episode": "x"}), "outside")
	failed(t, call(t, h, "update_episode_metadata", map[string]any{
		"series": "demo", "episode": testEpisode, "updates": map[string]any{"content_status": "bogus"},
	}), "Content status must be one of")
	failed(t, call(t, h, "update_episode_metadata", map[string]any{
		"series": "demo", "episode": testEpisode, "updates": []any{"x"},
	}), "updates must be an object")
	failed(t, call(t, h, "update_workflow_progress", map[string]any{
		"series": "demo", "episode": testEpisode, "stage": "mixed", "completed": true,
	}), "Unknown workflow stage")
	failed(t, call(t, h, "update_workflow_progress", map[string]any{
		"series": "demo", "episode": testEpisode, "stage": "edited",
	}), "completed is required")
	failed(t, call(t, h, "list_episodes", map[string]any{"status": "bogus"}), "Invalid status")
}

func TestReleaseTools(t *testing.T) {
	h := newTestHandlers(t)
	createIntro(t, h)
	path := "series/demo/" + testEpisode

	queue := ok(t, call(t, h, "get_release_queue", nil))
	if staged, _ := queue["staged"].([]any); len(staged) != 0 {
		t.Fatalf("expected empty queue, got %+v", queue)
	}

	for i := 0; i < 2; i++ {
		queue = ok(t, call(t, h, "schedule_release", map[string]any{"path": path, "date": "2025-06-02", "group": "launch"}))
	}
	if staged, _ := queue["staged"].([]any); len(staged) != 1 {
		t.Fatalf("scheduling twice must not duplicate, got %+v", queue["staged"])
	}

	payload := ok(t, call(t, h, "update_release_status", map[string]any{"path": path, "status": "released"}))
	if payload["content_status"] != "released" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	failed(t, call(t, h, "update_release_status", map[string]any{"path": "series/demo/../../etc", "status": "ready"}), "")
	failed(t, call(t, h, "schedule_release", map[string]any{"path": path, "date": "2025-02-30"}), "")

	pipeline := ok(t, call(t, h, "get_pipeline_status", nil))
	if pipeline["total"] != float64(1) {
		t.Fatalf("unexpected pipeline %+v", pipeline)
	}

	if profiles := ok(t, call(t, h, "get_distribution_profiles", nil)); profiles["profiles"] == nil {
		t.Fatalf("expected profiles skeleton, got %+v", profiles)
	}
}

func TestAssetTools(t *testing.T) {
	h := newTestHandlers(t)
	root := h.core.AssetsRoot()

	if payload := ok(t, call(t, h, "create_asset_folder", map[string]any{"name": "music"})); payload["path"] != "music" {
		t.Fatalf("unexpected folder payload %+v", payload)
	}
	if err := os.WriteFile(filepath.Join(root, "music", "theme.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	tree := ok(t, call(t, h, "list_assets", map[string]any{"pattern": "**/*.mp3"}))
	if tree["fileCount"] != float64(1) {
		t.Fatalf("unexpected tree %+v", tree)
	}

	info := ok(t, call(t, h, "get_asset_info", map[string]any{"path": "music/theme.mp3"}))
	if info["name"] != "theme.mp3" || info["type"] != "file" {
		t.Fatalf("unexpected info %+v", info)
	}

	moved := ok(t, call(t, h, "move_asset", map[string]any{"source": "music/theme.mp3", "destination": "theme.mp3"}))
	if moved["path"] != "theme.mp3" {
		t.Fatalf("unexpected move payload %+v", moved)
	}

	failed(t, call(t, h, "delete_asset", map[string]any{"path": "../outside"}), "outside")
	failed(t, call(t, h, "move_asset", map[string]any{"source": "missing.mp3", "destination": "x.mp3"}), "not found")
	ok(t, call(t, h, "delete_asset", map[string]any{"path": "theme.mp3"}))
	ok(t, call(t, h, "delete_asset", map[string]any{"path": "music"}))
}

func TestGenerationStubs(t *testing.T) {
	h := newTestHandlers(t)
	createIntro(t, h)

	result := call(t, h, "generate_description", map[string]any{"series": "demo", "episode": testEpisode})
	failed(t, result, "not_implemented")
	var stub studio.GenerationResult
	if err := json.Unmarshal([]byte(text(t, result)), &stub); err != nil {
		t.Fatalf("decode stub: %v", err)
	}
	if stub.Context.Title != "Introduction" {
		t.Fatalf("expected episode context, got %+v", stub)
	}

	result = call(t, h, "generate_social_posts", map[string]any{
		"series": "demo", "episode": testEpisode, "platforms": []any{"twitter", "myspace"},
	})
	failed(t, result, "not_implemented")
	if err := json.Unmarshal([]byte(text(t, result)), &stub); err != nil {
		t.Fatalf("decode stub: %v", err)
	}
	if len(stub.Context.Platforms) != 1 || stub.Context.Platforms[0] != "twitter" {
		t.Fatalf("expected unknown platforms dropped, got %+v", stub.Context.Platforms)
	}

	failed(t, call(t, h, "generate_description", map[string]any{"series": "demo", "episode": "missing"}), "not found")
}
