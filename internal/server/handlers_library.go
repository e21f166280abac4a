package server

import (
	"net/http"
	"strings"

	"lydistories/pkg/domain"
)

type addBookmarkRequest struct {
	ContentID string `json:"content_id"`
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListBookmarks(r.Context(), user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	case http.MethodPost:
		var req addBookmarkRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.ContentID) == "" {
			writeError(w, http.StatusBadRequest, "content_id is required")
			return
		}
		bookmark, err := s.app.AddBookmark(user, req.ContentID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, bookmark)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookmarkByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	contentID := strings.TrimPrefix(r.URL.Path, "/api/bookmarks/")
	if contentID == "" || strings.Contains(contentID, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.RemoveBookmark(user, contentID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type progressRequest struct {
	ContentID       string  `json:"content_id"`
	ProgressPercent float64 `json:"progress_percent"`
	LastPage        int     `json:"last_page"`
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ContentID) == "" {
		writeError(w, http.StatusBadRequest, "content_id is required")
		return
	}
	progress, err := s.app.SaveProgress(user, req.ContentID, req.ProgressPercent, req.LastPage)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request, user domain.User) {
	contentID := strings.TrimPrefix(r.URL.Path, "/api/reading-progress/")
	if contentID == "" || strings.Contains(contentID, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	progress, err := s.app.GetProgress(user, contentID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dash, err := s.app.GetDashboard(r.Context(), user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
