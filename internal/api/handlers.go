package api

import (
	"encoding/json"
	"net/http"

	"filevc/internal/diff"
	"filevc/internal/engine"
	"filevc/internal/errors"
	"filevc/internal/logging"
	"filevc/internal/validation"
	"filevc/shared/types"

	"go.uber.org/zap"
)

type editRequest struct {
	Path        string `json:"path" validate:"required"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

type contentRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

type pathRequest struct {
	Path string `json:"path" validate:"required"`
}

type commitRequest struct {
	Message string `json:"message" validate:"required"`
}

type PreviewResponse struct {
	Change *shared.Change `json:"change"`
	Stats  diff.Stats     `json:"stats"`
}

type ChangesResponse struct {
	Staged   []shared.PendingChange `json:"staged"`
	Unstaged []shared.PendingChange `json:"unstaged"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// Handler serves the engine over HTTP
type Handler struct {
	engine *engine.Engine
	logger *logging.Logger
}

func NewHandler(e *engine.Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &Handler{engine: e, logger: logger}
}

// Register adds every route to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/edits", h.ApplyEdit)
	mux.HandleFunc("POST /api/edits/preview", h.Preview)

	mux.HandleFunc("GET /api/versions", h.Versions)
	mux.HandleFunc("GET /api/versions/current", h.CurrentVersion)
	mux.HandleFunc("GET /api/versions/{id}", h.Version)
	mux.HandleFunc("POST /api/versions/{id}/revert", h.Revert)

	mux.HandleFunc("POST /api/changes", h.AddChange)
	mux.HandleFunc("GET /api/changes", h.Changes)
	mux.HandleFunc("GET /api/changes/pending", h.Pending)
	mux.HandleFunc("POST /api/changes/stage", h.Stage)
	mux.HandleFunc("POST /api/changes/unstage", h.Unstage)
	mux.HandleFunc("POST /api/changes/discard", h.Discard)

	mux.HandleFunc("POST /api/commits", h.Commit)

	mux.HandleFunc("GET /api/locks", h.Locks)
	mux.HandleFunc("DELETE /api/locks", h.Unlock)
	mux.HandleFunc("DELETE /api/locks/{path...}", h.Unlock)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	req, err := validation.Decode[editRequest](w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	change, err := h.engine.ApplyFileEdit(r.Context(), req.Path, req.Content, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if change == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	req, err := validation.Decode[contentRequest](w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	change, stats, err := h.engine.Preview(req.Path, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Change: change, Stats: stats})
}

func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Versions())
}

func (h *Handler) CurrentVersion(w http.ResponseWriter, r *http.Request) {
	v, ok := h.engine.CurrentVersion()
	if !ok {
		h.writeError(w, r, errors.NotFound("no versions recorded"))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Version(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	changes, err := h.engine.RevertTo(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (h *Handler) AddChange(w http.ResponseWriter, r *http.Request) {
	req, err := validation.Decode[contentRequest](w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.engine.AddPending(req.Path, req.Content); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true})
}

func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ChangesResponse{
		Staged:   h.engine.Staged(),
		Unstaged: h.engine.Unstaged(),
	})
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Pending())
}

func (h *Handler) Stage(w http.ResponseWriter, r *http.Request) {
	h.withPath(w, r, func(path string) bool { return h.engine.Stage(path) })
}

func (h *Handler) Unstage(w http.ResponseWriter, r *http.Request) {
	h.withPath(w, r, func(path string) bool { return h.engine.Unstage(path) })
}

func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	h.withPath(w, r, func(path string) bool {
		h.engine.Discard(path)
		return true
	})
}

func (h *Handler) withPath(w http.ResponseWriter, r *http.Request, fn func(string) bool) {
	req, err := validation.Decode[pathRequest](w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: fn(req.Path)})
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	req, err := validation.Decode[commitRequest](w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	changes, err := h.engine.Commit(r.Context(), req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (h *Handler) Locks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Locked())
}

// Unlock takes the path from the URL or, for absolute paths that the mux
// would clean away, from the path query parameter.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = r.PathValue("path")
	}
	if path == "" {
		h.writeError(w, r, errors.ValidationError("path is required", nil))
		return
	}
	h.engine.Unlock(path)
	w.WriteHeader(http.StatusNoContent)
}

// writeError renders err as its typed JSON form. Untyped errors are logged
// and hidden behind a generic internal error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	e, ok := errors.As(err)
	if !ok {
		e = errors.Internal("internal server error", err)
		message = e.Message
	}

	log := h.logger.WithRequestID(r.Context())
	if e.Code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Error(err))
	}

	writeJSON(w, e.Code, &errors.Error{
		Type:    e.Type,
		Message: message,
		Code:    e.Code,
		Details: e.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
