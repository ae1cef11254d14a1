package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/types"
)

const (
	defaultLogLines = 50
	minLogLines     = 1
	maxLogLines     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type pubkeyRequest struct {
	Pubkey string `json:"pubkey"`
}

func readPubkey(r *http.Request) string {
	var req pubkeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Pubkey)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"instances": s.mgr.InstanceCount(),
	})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	views, err := s.mgr.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read instance store")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": views})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	pubkey := readPubkey(r)

	res, err := s.mgr.Launch(r.Context(), pubkey)
	if err != nil {
		s.writeLaunchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instance": manager.InstanceView{
			InstanceRecord: res.Record,
			ID:             res.ID,
			Status:         res.Status,
		},
	})
}

func (s *Server) writeLaunchError(w http.ResponseWriter, err error) {
	var conflict *manager.ConflictError
	var apiErr *runtime.APIError

	switch {
	case errors.Is(err, manager.ErrBadInput):
		writeError(w, http.StatusBadRequest, "Invalid wallet public key")
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "Instance already running",
			"instance": manager.InstanceView{
				InstanceRecord: conflict.Record,
				ID:             conflict.ID,
				Status:         types.StatusRunning,
			},
		})
	case errors.Is(err, manager.ErrCapacity):
		writeError(w, http.StatusTooManyRequests, "Maximum instances reached")
	case errors.Is(err, runtime.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, "Docker unreachable")
	case errors.As(err, &apiErr):
		writeError(w, http.StatusInternalServerError, "Docker launch failed: "+apiErr.Message)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	pubkey := readPubkey(r)
	if pubkey == "" {
		writeError(w, http.StatusBadRequest, "Missing pubkey")
		return
	}

	id, err := s.mgr.Stop(r.Context(), pubkey)
	switch {
	case errors.Is(err, manager.ErrBadInput):
		writeError(w, http.StatusBadRequest, "Invalid wallet public key")
	case errors.Is(err, runtime.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, "Docker unreachable")
	case errors.Is(err, runtime.ErrNotFound):
		writeError(w, http.StatusNotFound, "Container not found or already stopped")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "id": id})
	}
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	pubkey := readPubkey(r)
	if pubkey == "" {
		writeError(w, http.StatusBadRequest, "Missing pubkey")
		return
	}

	id, err := s.mgr.Destroy(r.Context(), pubkey)
	switch {
	case errors.Is(err, manager.ErrBadInput):
		writeError(w, http.StatusBadRequest, "Invalid wallet public key")
	case errors.Is(err, runtime.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, "Docker unreachable")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "destroyed", "id": id})
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stats, err := s.mgr.StatsFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Docker unreachable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			lines = n
		}
	}
	if lines < minLogLines {
		lines = minLogLines
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}

	logs, err := s.mgr.Logs(r.Context(), id, lines)
	switch {
	case errors.Is(err, runtime.ErrNotFound):
		writeError(w, http.StatusNotFound, "Container not found")
	case errors.Is(err, runtime.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, "Docker unreachable")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to fetch logs")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"logs": logs})
	}
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	s.streamer.ServeHTTP(w, r, chi.URLParam(r, "id"))
}
