package server

import (
	"net/http"
	"strconv"
	"strings"

	"lydistories/internal/app"
	"lydistories/pkg/domain"
	"lydistories/pkg/store"
)

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListContent(w, r)
	case http.MethodPost:
		s.adminOnly(s.handleCreateContent).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	filter := store.ContentFilter{
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Featured: r.URL.Query().Get("featured") == "true",
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			writeAppError(w, app.ErrInvalidCategory)
			return
		}
		filter.Category = category
	}
	views, err := s.app.ListContent(r.Context(), s.viewer(r), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": views,
		"count": len(views),
	})
}

func (s *Server) handleContentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/content/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		view, err := s.app.GetContent(r.Context(), s.viewer(r), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, _ domain.User) {
			s.handleUpdateContent(w, r, id)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, _ domain.User) {
			if err := s.app.DeleteContent(r.Context(), id); err != nil {
				writeAppError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request, _ domain.User) {
	params, err := s.contentParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.app.CreateContent(r.Context(), params)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request, id string) {
	params, err := s.updateContentParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.app.UpdateContent(r.Context(), id, params)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// contentParams reads a new catalog item from either a multipart form
// (with optional cover and document files) or a plain JSON body.
func (s *Server) contentParams(r *http.Request) (app.ContentParams, error) {
	if !isMultipart(r) {
		var req struct {
			Title       string  `json:"title"`
			Author      string  `json:"author"`
			Category    string  `json:"category"`
			Description string  `json:"description"`
			PreviewText string  `json:"preview_text"`
			FullText    string  `json:"full_text"`
			Price       float64 `json:"price"`
			IsFeatured  bool    `json:"is_featured"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return app.ContentParams{}, errInvalidBody
		}
		return app.ContentParams{
			Title:       req.Title,
			Author:      req.Author,
			Category:    req.Category,
			Description: req.Description,
			PreviewText: req.PreviewText,
			FullText:    req.FullText,
			Price:       req.Price,
			IsFeatured:  req.IsFeatured,
		}, nil
	}

	cover, err := s.formUpload(r, "cover")
	if err != nil {
		return app.ContentParams{}, err
	}
	document, err := s.formUpload(r, "document")
	if err != nil {
		return app.ContentParams{}, err
	}
	params := app.ContentParams{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		PreviewText: r.FormValue("preview_text"),
		FullText:    r.FormValue("full_text"),
		IsFeatured:  r.FormValue("is_featured") == "true",
		Cover:       cover,
		Document:    document,
	}
	if raw := r.FormValue("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return app.ContentParams{}, errInvalidPriceValue
		}
		params.Price = price
	}
	return params, nil
}

// updateContentParams reads partial edits; absent fields stay nil.
func (s *Server) updateContentParams(r *http.Request) (app.UpdateContentParams, error) {
	if !isMultipart(r) {
		var req struct {
			Title       *string  `json:"title"`
			Author      *string  `json:"author"`
			Category    *string  `json:"category"`
			Description *string  `json:"description"`
			PreviewText *string  `json:"preview_text"`
			FullText    *string  `json:"full_text"`
			Price       *float64 `json:"price"`
			IsFeatured  *bool    `json:"is_featured"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return app.UpdateContentParams{}, errInvalidBody
		}
		return app.UpdateContentParams{
			Title:       req.Title,
			Author:      req.Author,
			Category:    req.Category,
			Description: req.Description,
			PreviewText: req.PreviewText,
			FullText:    req.FullText,
			Price:       req.Price,
			IsFeatured:  req.IsFeatured,
		}, nil
	}

	cover, err := s.formUpload(r, "cover")
	if err != nil {
		return app.UpdateContentParams{}, err
	}
	document, err := s.formUpload(r, "document")
	if err != nil {
		return app.UpdateContentParams{}, err
	}
	params := app.UpdateContentParams{Cover: cover, Document: document}
	params.Title = formValue(r, "title")
	params.Author = formValue(r, "author")
	params.Category = formValue(r, "category")
	params.Description = formValue(r, "description")
	params.PreviewText = formValue(r, "preview_text")
	params.FullText = formValue(r, "full_text")
	if raw := formValue(r, "price"); raw != nil {
		price, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return app.UpdateContentParams{}, errInvalidPriceValue
		}
		params.Price = &price
	}
	if raw := formValue(r, "is_featured"); raw != nil {
		featured := *raw == "true"
		params.IsFeatured = &featured
	}
	return params, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formValue distinguishes an absent form field from an empty one.
func formValue(r *http.Request, name string) *string {
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}
