package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
)

// Multipart framing allowance on top of the per-file upload limit.
const uploadOverhead = 1 << 20

func (h *serverHandler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tree, err := h.core.ListAssets(query.Get("path"), query.Get("pattern"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "tree": tree})
}

func (h *serverHandler) handleAssetInfo(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, r, apperr.Invalidf("path is required"))
		return
	}
	info, err := h.core.AssetInfo(path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "asset": info})
}

func (h *serverHandler) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	parent := bodyString(body, "parent")
	if parent == "" {
		parent = bodyString(body, "path")
	}
	created, err := h.core.CreateAssetFolder(parent, bodyString(body, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "path": created})
}

func (h *serverHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	r.Body = http.MaxBytesReader(w, r.Body, h.core.UploadLimit()+uploadOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		h.writeError(w, r, apperr.Invalidf("Expected a multipart/form-data upload"))
		return
	}

	files := []string{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeError(w, r, uploadError(err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		stored, err := h.core.UploadAsset(dir, part.FileName(), part)
		_ = part.Close()
		if err != nil {
			h.writeError(w, r, uploadError(err))
			return
		}
		files = append(files, stored)
	}
	if len(files) == 0 {
		h.writeError(w, r, apperr.Invalidf("No file provided"))
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "files": files})
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Invalidf("Upload exceeds the size limit")
	}
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		return apperr.Invalidf("Malformed upload: %v", err)
	}
	return err
}

func (h *serverHandler) handleMoveAsset(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("path")
	body, err := decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var moved string
	switch {
	case bodyString(body, "destination") != "":
		moved, err = h.core.MoveAsset(source, bodyString(body, "destination"))
	case bodyString(body, "name") != "":
		moved, err = h.core.RenameAsset(source, bodyString(body, "name"))
	default:
		err = apperr.Invalidf("destination or name is required")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "path": moved})
}

func (h *serverHandler) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.core.DeleteAsset(r.PathValue("path")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}
