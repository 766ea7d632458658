package server

import (
	"net/http"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

func (h *serverHandler) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.core.ListEpisodes(studio.EpisodeFilter{
		Series: query.Get("series"),
		Status: query.Get("status"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "count": len(list), "episodes": list})
}

func (h *serverHandler) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := h.core.GetEpisode(r.PathValue("series"), r.PathValue("episode"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":  true,
		"series":   ep.Series,
		"episode":  ep.Episode,
		"path":     ep.Path,
		"metadata": ep.Metadata,
		"files":    ep.Files,
	})
}

func (h *serverHandler) handleUpdateEpisode(w http.ResponseWriter, r *http.Request) {
	updates, err := decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ep, err := h.core.UpdateEpisode(r.Context(), r.PathValue("series"), r.PathValue("episode"), updates)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "metadata": ep.Metadata, "files": ep.Files})
}

func (h *serverHandler) handleCreateEpisode(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ep, err := h.core.CreateEpisode(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "episode": ep})
}

func (h *serverHandler) handleReleaseQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.core.ReleaseQueue()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "queue": queue})
}

func (h *serverHandler) handleScheduleRelease(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	path := bodyString(body, "path")
	if path == "" {
		h.writeError(w, r, apperr.Invalidf("path is required"))
		return
	}
	queue, err := h.core.ScheduleRelease(r.Context(), path, bodyString(body, "date"), bodyString(body, "group"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "queue": queue})
}

func (h *serverHandler) handleReleaseStatus(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	path := bodyString(body, "path")
	if path == "" {
		h.writeError(w, r, apperr.Invalidf("path is required"))
		return
	}
	status := bodyString(body, "status")
	if err := h.core.UpdateReleaseStatus(r.Context(), path, status); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "path": path, "content_status": status})
}

func (h *serverHandler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.core.DistributionProfiles()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "profiles": profiles})
}

func (h *serverHandler) handlePipeline(w http.ResponseWriter, r *http.Request) {
	pipeline, err := h.core.PipelineStatus()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "pipeline": pipeline})
}
