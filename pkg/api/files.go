package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxFilenameLen = 64

// validFilename enforces the workspace file policy: markdown or JSON only,
// no path traversal, bounded length.
func validFilename(name string) bool {
	if name == "" || len(name) > maxFilenameLen {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".json")
}

// workspaceDir resolves an instance's workspace directory, confirming the
// instance exists in the store.
func (s *Server) workspaceDir(id string) (string, bool) {
	db, err := s.mgr.Store().Load()
	if err != nil {
		return "", false
	}
	if _, ok := db.Instances[id]; !ok {
		return "", false
	}
	return filepath.Join(s.cfg.DataDir, "instances", id, "workspace"), true
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dir, ok := s.workspaceDir(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Instance not found")
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		writeError(w, http.StatusNotFound, "Workspace not found")
		return
	}

	files := []string{}
	for _, entry := range entries {
		if entry.Type().IsRegular() && validFilename(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	if !validFilename(name) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	dir, ok := s.workspaceDir(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Instance not found")
		return
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"content":  "",
			"filename": name,
			"exists":   false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":  string(data),
		"filename": name,
		"exists":   true,
	})
}

func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	if !validFilename(name) {
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	dir, ok := s.workspaceDir(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Instance not found")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		// Edits only; the workspace's file set is owned by the instance.
		writeError(w, http.StatusForbidden, "File creation not allowed")
		return
	}
	if err := os.WriteFile(path, []byte(req.Content), 0o600); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
