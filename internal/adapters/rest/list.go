package rest

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

type listEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type listResponse struct {
	Entries []listEntry `json:"entries"`
	Parent  string      `json:"parent"`
}

// handleList lists the immediate subdirectories of ?path=, for the
// frontend's directory picker.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "path not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		writeError(w, http.StatusBadRequest, "not a directory")
		return
	}

	raw, err := os.ReadDir(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var entries []listEntry
	for _, e := range raw {
		if e.IsDir() {
			entries = append(entries, listEntry{Name: e.Name(), Path: filepath.Join(path, e.Name())})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	parent := filepath.Dir(path)
	if parent == path {
		parent = ""
	}
	writeJSON(w, http.StatusOK, listResponse{Entries: entries, Parent: parent})
}
