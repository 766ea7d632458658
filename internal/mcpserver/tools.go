package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/metadata"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

func (h *handlers) toolset() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("list_episodes",
			mcp.WithDescription("List episodes, optionally filtered by series and content status"),
			mcp.WithString("series", mcp.Description("Series folder name")),
			mcp.WithString("status", mcp.Description("Content status"), mcp.Enum(metadata.Statuses...)),
		), Handler: h.listEpisodes},
		{Tool: mcp.NewTool("get_episode",
			mcp.WithDescription("Get the metadata and files of one episode"),
			mcp.WithString("series", mcp.Required(), mcp.Description("Series folder name")),
			mcp.WithString("episode", mcp.Required(), mcp.Description("Episode folder name")),
		), Handler: h.getEpisode},
		{Tool: mcp.NewTool("create_episode",
			mcp.WithDescription("Scaffold a new episode folder dated today"),
			mcp.WithString("series", mcp.Required(), mcp.Description("Series folder name")),
			mcp.WithString("topic", mcp.Required(), mcp.Description("Topic, slugified into the folder name")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Episode title")),
			mcp.WithString("description", mcp.Description("Episode description")),
			mcp.WithString("target_date", mcp.Description("Planned release date (YYYY-MM-DD)")),
		), Handler: h.createEpisode},
		{Tool: mcp.NewTool("update_episode_metadata",
			mcp.WithDescription("Validate and deep-merge a partial metadata update into an episode"),
			mcp.WithString("series", mcp.Required(), mcp.Description("Series folder name")),
			mcp.WithString("episode", mcp.Required(), mcp.Description("Episode folder name")),
			mcp.WithObject("updates", mcp.Required(), mcp.Description("Metadata fields to change")),
		), Handler: h.updateEpisodeMetadata},
		{Tool: mcp.NewTool("update_workflow_progress",
			mcp.WithDescription("Mark one workflow stage of an episode as completed or not"),
			mcp.WithString("series", mcp.Required(), mcp.Description("Series folder name")),
			mcp.WithString("episode", mcp.Required(), mcp.Description("Episode folder name")),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Workflow stage"), mcp.Enum(metadata.WorkflowStages...)),
			mcp.WithBoolean("completed", mcp.Required(), mcp.Description("Whether the stage is done")),
		), Handler: h.updateWorkflowProgress},
		{Tool: mcp.NewTool("get_release_queue",
			mcp.WithDescription("Get the release queue"),
		), Handler: h.getReleaseQueue},
		{Tool: mcp.NewTool("update_release_status",
			mcp.WithDescription("Set the content status of an episode"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Episode path, e.g. series/demo/2025-01-01-intro")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Content status"), mcp.Enum(metadata.Statuses...)),
		), Handler: h.updateReleaseStatus},
		{Tool: mcp.NewTool("schedule_release",
			mcp.WithDescription("Stage an episode for release on a date, optionally in a release group"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Episode path, e.g. series/demo/2025-01-01-intro")),
			mcp.WithString("date", mcp.Required(), mcp.Description("Release date (YYYY-MM-DD)")),
			mcp.WithString("group", mcp.Description("Release group name")),
		), Handler: h.scheduleRelease},
		{Tool: mcp.NewTool("get_pipeline_status",
			mcp.WithDescription("Summarize episode counts per status and workflow stage plus upcoming releases"),
		), Handler: h.getPipelineStatus},
		{Tool: mcp.NewTool("get_distribution_profiles",
			mcp.WithDescription("Get the distribution profiles"),
		), Handler: h.getDistributionProfiles},
		{Tool: mcp.NewTool("list_assets",
			mcp.WithDescription("List the shared asset tree"),
			mcp.WithString("path", mcp.Description("Folder below the assets root")),
			mcp.WithString("pattern", mcp.Description("Glob filter such as **/*.mp3")),
		), Handler: h.listAssets},
		{Tool: mcp.NewTool("get_asset_info",
			mcp.WithDescription("Describe one asset file or folder"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Asset path below the assets root")),
		), Handler: h.getAssetInfo},
		{Tool: mcp.NewTool("create_asset_folder",
			mcp.WithDescription("Create a folder in the asset tree"),
			mcp.WithString("parent", mcp.Description("Parent folder, the assets root when empty")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Folder name")),
		), Handler: h.createAssetFolder},
		{Tool: mcp.NewTool("move_asset",
			mcp.WithDescription("Move or rename an asset"),
			mcp.WithString("source", mcp.Required(), mcp.Description("Current asset path")),
			mcp.WithString("destination", mcp.Required(), mcp.Description("New asset path")),
		), Handler: h.moveAsset},
		{Tool: mcp.NewTool("delete_asset",
			mcp.WithDescription("Delete an asset file or empty folder"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Asset path")),
		), Handler: h.deleteAsset},
		{Tool: mcp.NewTool("generate_description",
			mcp.WithDescription("Draft an episode description (not implemented yet)"),
			mcp.WithString("series", mcp.Required(), mcp.Description("Series folder name")),
			mcp.WithString("episode", mcp.Required(), mcp.Description("Episode folder name")),
		), Handler: h.generateDescription},
		{Tool: mcp.NewTool("generate_social_posts",
			mcp.WithDescription("Draft social media posts for an episode (not implemented yet)"),
			mcp.WithString("series", mcp.Required(), mcp.Description("Series folder name")),
			mcp.WithString("episode", mcp.Required(), mcp.Description("Episode folder name")),
			mcp.WithArray("platforms", mcp.Description("Target platforms"), mcp.Items(map[string]any{
				"type": "string",
				"enum": studio.SocialPlatforms,
			})),
		), Handler: h.generateSocialPosts},
	}
}

type arguments map[string]any

func argsOf(req mcp.CallToolRequest) arguments {
	return arguments(req.GetArguments())
}

func (a arguments) str(key string) string {
	if v, ok := a[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func (a arguments) required(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if a.str(key) == "" {
			missing = append(missing, key+" is required")
		}
	}
	if len(missing) > 0 {
		return apperr.Invalid(missing...)
	}
	return nil
}

func (a arguments) strings(key string) []string {
	raw, ok := a[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// object accepts either a JSON object or a string holding one, since some
// clients serialize nested arguments.
func (a arguments) object(key string) (map[string]any, error) {
	switch v := a[key].(type) {
	case map[string]any:
		return v, nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil || out == nil {
			return nil, apperr.Invalidf("%s must be an object", key)
		}
		return out, nil
	case nil:
		return nil, apperr.Invalidf("%s is required", key)
	default:
		return nil, apperr.Invalidf("%s must be an object", key)
	}
}

func (a arguments) boolean(key string) (bool, error) {
	switch v := a[key].(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case nil:
		return false, apperr.Invalidf("%s is required", key)
	}
	return false, apperr.Invalidf("%s must be a boolean", key)
}

func (h *handlers) listEpisodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	list, err := h.core.ListEpisodes(studio.EpisodeFilter{Series: args.str("series"), Status: args.str("status")})
	if err != nil {
		return h.failure("list_episodes", err)
	}
	return jsonResult(map[string]any{"count": len(list), "episodes": list})
}

func (h *handlers) getEpisode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("series", "episode"); err != nil {
		return h.failure("get_episode", err)
	}
	ep, err := h.core.GetEpisode(args.str("series"), args.str("episode"))
	if err != nil {
		return h.failure("get_episode", err)
	}
	return jsonResult(ep)
}

func (h *handlers) createEpisode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ep, err := h.core.CreateEpisode(ctx, req.GetArguments())
	if err != nil {
		return h.failure("create_episode", err)
	}
	return jsonResult(map[string]any{
		"message": fmt.Sprintf("Created episode %s", ep.Path),
		"episode": ep,
	})
}

func (h *handlers) updateEpisodeMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("series", "episode"); err != nil {
		return h.failure("update_episode_metadata", err)
	}
	updates, err := args.object("updates")
	if err != nil {
		return h.failure("update_episode_metadata", err)
	}
	ep, err := h.core.UpdateEpisode(ctx, args.str("series"), args.str("episode"), updates)
	if err != nil {
		return h.failure("update_episode_metadata", err)
	}
	return jsonResult(map[string]any{"metadata": ep.Metadata, "files": ep.Files})
}

func (h *handlers) updateWorkflowProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("series", "episode", "stage"); err != nil {
		return h.failure("update_workflow_progress", err)
	}
	completed, err := args.boolean("completed")
	if err != nil {
		return h.failure("update_workflow_progress", err)
	}
	ep, err := h.core.UpdateWorkflowProgress(ctx, args.str("series"), args.str("episode"), args.str("stage"), completed)
	if err != nil {
		return h.failure("update_workflow_progress", err)
	}
	return jsonResult(map[string]any{"workflow": ep.Metadata["workflow"]})
}

func (h *handlers) getReleaseQueue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queue, err := h.core.ReleaseQueue()
	if err != nil {
		return h.failure("get_release_queue", err)
	}
	return jsonResult(queue)
}

func (h *handlers) updateReleaseStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("path", "status"); err != nil {
		return h.failure("update_release_status", err)
	}
	if err := h.core.UpdateReleaseStatus(ctx, args.str("path"), args.str("status")); err != nil {
		return h.failure("update_release_status", err)
	}
	return jsonResult(map[string]any{"path": args.str("path"), "content_status": args.str("status")})
}

func (h *handlers) scheduleRelease(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("path", "date"); err != nil {
		return h.failure("schedule_release", err)
	}
	queue, err := h.core.ScheduleRelease(ctx, args.str("path"), args.str("date"), args.str("group"))
	if err != nil {
		return h.failure("schedule_release", err)
	}
	return jsonResult(queue)
}

func (h *handlers) getPipelineStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipeline, err := h.core.PipelineStatus()
	if err != nil {
		return h.failure("get_pipeline_status", err)
	}
	return jsonResult(pipeline)
}

func (h *handlers) getDistributionProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profiles, err := h.core.DistributionProfiles()
	if err != nil {
		return h.failure("get_distribution_profiles", err)
	}
	return jsonResult(profiles)
}

func (h *handlers) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	tree, err := h.core.ListAssets(args.str("path"), args.str("pattern"))
	if err != nil {
		return h.failure("list_assets", err)
	}
	return jsonResult(tree)
}

func (h *handlers) getAssetInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("path"); err != nil {
		return h.failure("get_asset_info", err)
	}
	info, err := h.core.AssetInfo(args.str("path"))
	if err != nil {
		return h.failure("get_asset_info", err)
	}
	return jsonResult(info)
}

func (h *handlers) createAssetFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("name"); err != nil {
		return h.failure("create_asset_folder", err)
	}
	created, err := h.core.CreateAssetFolder(args.str("parent"), args.str("name"))
	if err != nil {
		return h.failure("create_asset_folder", err)
	}
	return jsonResult(map[string]any{"path": created})
}

func (h *handlers) moveAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("source", "destination"); err != nil {
		return h.failure("move_asset", err)
	}
	moved, err := h.core.MoveAsset(args.str("source"), args.str("destination"))
	if err != nil {
		return h.failure("move_asset", err)
	}
	return jsonResult(map[string]any{"path": moved})
}

func (h *handlers) deleteAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("path"); err != nil {
		return h.failure("delete_asset", err)
	}
	if err := h.core.DeleteAsset(args.str("path")); err != nil {
		return h.failure("delete_asset", err)
	}
	return jsonResult(map[string]any{"deleted": args.str("path")})
}

func (h *handlers) generateDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("series", "episode"); err != nil {
		return h.failure("generate_description", err)
	}
	result, err := h.core.GenerateDescription(args.str("series"), args.str("episode"))
	if err != nil {
		return h.failure("generate_description", err)
	}
	return notImplemented(result)
}

func (h *handlers) generateSocialPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	if err := args.required("series", "episode"); err != nil {
		return h.failure("generate_social_posts", err)
	}
	result, err := h.core.GenerateSocialPosts(args.str("series"), args.str("episode"), args.strings("platforms"))
	if err != nil {
		return h.failure("generate_social_posts", err)
	}
	return notImplemented(result)
}

func notImplemented(result studio.GenerationResult) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(result.Message), nil
	}
	return mcp.NewToolResultError(string(data)), nil
}
