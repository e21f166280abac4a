package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"lydistories/internal/util"
	"lydistories/pkg/domain"
	"lydistories/pkg/store"
)

const previewLength = 500

// ContentView is a catalog item as seen by a particular viewer. The
// restricted fields (full text, download URL) are present only when
// the viewer holds access.
type ContentView struct {
	domain.Content
	HasAccess bool   `json:"has_access"`
	CoverURL  string `json:"cover_url,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
}

// ListContent returns catalog items visible to the viewer, with the
// restricted fields stripped. viewer may be nil for anonymous browsing.
func (a *App) ListContent(ctx context.Context, viewer *domain.User, filter store.ContentFilter) ([]ContentView, error) {
	items, err := a.store.ListContent(filter)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	granted := map[string]bool{}
	isAdmin := false
	if viewer != nil {
		isAdmin = viewer.Role == domain.RoleAdmin
		if !isAdmin {
			grants, err := a.store.ListGrantsByUser(viewer.ID)
			if err != nil {
				return nil, fmt.Errorf("list grants: %w", err)
			}
			for _, g := range grants {
				granted[g.ContentID] = true
			}
		}
	}
	views := make([]ContentView, 0, len(items))
	for _, item := range items {
		view := a.newContentView(ctx, item, isAdmin || granted[item.ID])
		// Listings never carry the full text, even for owners.
		view.FullText = ""
		view.FileURL = ""
		views = append(views, view)
	}
	return views, nil
}

// GetContent returns one catalog item for the viewer, including the
// full text and a download URL when the viewer holds access.
func (a *App) GetContent(ctx context.Context, viewer *domain.User, id string) (ContentView, error) {
	item, ok, err := a.store.GetContent(id)
	if err != nil {
		return ContentView{}, fmt.Errorf("load content: %w", err)
	}
	if !ok {
		return ContentView{}, ErrContentNotFound
	}
	hasAccess := false
	if viewer != nil {
		hasAccess, err = a.HasAccess(*viewer, item.ID)
		if err != nil {
			return ContentView{}, fmt.Errorf("check access: %w", err)
		}
	}
	return a.newContentView(ctx, item, hasAccess), nil
}

func (a *App) newContentView(ctx context.Context, item domain.Content, hasAccess bool) ContentView {
	view := ContentView{Content: item, HasAccess: hasAccess}
	if url, err := a.FileURL(ctx, item.CoverImage); err == nil {
		view.CoverURL = url
	}
	if hasAccess {
		if url, err := a.FileURL(ctx, item.FilePath); err == nil {
			view.FileURL = url
		}
	} else {
		view.FullText = ""
	}
	// Object keys are internal; clients use the presigned URLs.
	view.CoverImage = ""
	view.FilePath = ""
	return view
}

// ContentParams carries a new catalog item. Cover and Document are
// optional uploads.
type ContentParams struct {
	Title       string
	Author      string
	Category    string
	Description string
	PreviewText string
	FullText    string
	Price       float64
	IsFeatured  bool
	Cover       *Upload
	Document    *Upload
}

// CreateContent adds a catalog item. When a PDF document is attached,
// its page count and text are extracted to fill fields the admin left
// empty; extraction problems are logged and do not fail the upload.
func (a *App) CreateContent(ctx context.Context, params ContentParams) (domain.Content, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return domain.Content{}, ErrTitleRequired
	}
	category := domain.CategoryArticle
	if params.Category != "" {
		parsed, ok := domain.ParseCategory(params.Category)
		if !ok {
			return domain.Content{}, ErrInvalidCategory
		}
		category = parsed
	}
	if params.Price < 0 {
		return domain.Content{}, ErrInvalidPrice
	}
	now := time.Now().UTC()
	item := domain.Content{
		ID:          util.NewID(),
		Title:       title,
		Author:      strings.TrimSpace(params.Author),
		Category:    category,
		Description: strings.TrimSpace(params.Description),
		PreviewText: strings.TrimSpace(params.PreviewText),
		FullText:    params.FullText,
		Price:       params.Price,
		IsFeatured:  params.IsFeatured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.Document != nil {
		if a.objects == nil {
			return domain.Content{}, ErrUploadsDisabled
		}
		pages, text, err := extractPDF(params.Document.Data)
		if err != nil {
			slog.Warn("pdf extraction failed", "content_id", item.ID, "error", err)
		} else {
			item.PageCount = pages
			if item.FullText == "" {
				item.FullText = text
			}
		}
		key := "content/" + item.ID + ".pdf"
		if err := a.objects.Put(ctx, key, bytes.NewReader(params.Document.Data), int64(len(params.Document.Data)), "application/pdf"); err != nil {
			return domain.Content{}, fmt.Errorf("store document: %w", err)
		}
		item.FilePath = key
	}
	if item.PreviewText == "" && item.FullText != "" {
		item.PreviewText = truncateRunes(item.FullText, previewLength)
	}
	if params.Cover != nil {
		if a.objects == nil {
			return domain.Content{}, ErrUploadsDisabled
		}
		ext := safeExt(params.Cover.Filename, ".png", ".jpg", ".jpeg", ".webp")
		if ext == "" {
			ext = ".jpg"
		}
		key := "covers/" + item.ID + ext
		if err := a.objects.Put(ctx, key, bytes.NewReader(params.Cover.Data), int64(len(params.Cover.Data)), params.Cover.ContentType); err != nil {
			return domain.Content{}, fmt.Errorf("store cover: %w", err)
		}
		item.CoverImage = key
	}
	if err := a.store.SaveContent(item); err != nil {
		return domain.Content{}, fmt.Errorf("save content: %w", err)
	}
	return item, nil
}

// UpdateContentParams holds partial edits; nil fields keep their
// stored value.
type UpdateContentParams struct {
	Title       *string
	Author      *string
	Category    *string
	Description *string
	PreviewText *string
	FullText    *string
	Price       *float64
	IsFeatured  *bool
	Cover       *Upload
	Document    *Upload
}

// UpdateContent edits an existing catalog item. Changing the price
// never touches payments already initiated: the amount was frozen on
// the payment row.
func (a *App) UpdateContent(ctx context.Context, id string, params UpdateContentParams) (domain.Content, error) {
	item, ok, err := a.store.GetContent(id)
	if err != nil {
		return domain.Content{}, fmt.Errorf("load content: %w", err)
	}
	if !ok {
		return domain.Content{}, ErrContentNotFound
	}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return domain.Content{}, ErrTitleRequired
		}
		item.Title = title
	}
	if params.Author != nil {
		item.Author = strings.TrimSpace(*params.Author)
	}
	if params.Category != nil {
		parsed, ok := domain.ParseCategory(*params.Category)
		if !ok {
			return domain.Content{}, ErrInvalidCategory
		}
		item.Category = parsed
	}
	if params.Description != nil {
		item.Description = strings.TrimSpace(*params.Description)
	}
	if params.PreviewText != nil {
		item.PreviewText = strings.TrimSpace(*params.PreviewText)
	}
	if params.FullText != nil {
		item.FullText = *params.FullText
	}
	if params.Price != nil {
		if *params.Price < 0 {
			return domain.Content{}, ErrInvalidPrice
		}
		item.Price = *params.Price
	}
	if params.IsFeatured != nil {
		item.IsFeatured = *params.IsFeatured
	}
	if params.Document != nil {
		if a.objects == nil {
			return domain.Content{}, ErrUploadsDisabled
		}
		pages, text, err := extractPDF(params.Document.Data)
		if err != nil {
			slog.Warn("pdf extraction failed", "content_id", item.ID, "error", err)
		} else {
			item.PageCount = pages
			if params.FullText == nil {
				item.FullText = text
			}
		}
		key := "content/" + item.ID + ".pdf"
		if err := a.objects.Put(ctx, key, bytes.NewReader(params.Document.Data), int64(len(params.Document.Data)), "application/pdf"); err != nil {
			return domain.Content{}, fmt.Errorf("store document: %w", err)
		}
		item.FilePath = key
	}
	if params.Cover != nil {
		if a.objects == nil {
			return domain.Content{}, ErrUploadsDisabled
		}
		ext := safeExt(params.Cover.Filename, ".png", ".jpg", ".jpeg", ".webp")
		if ext == "" {
			ext = ".jpg"
		}
		key := "covers/" + item.ID + ext
		if err := a.objects.Put(ctx, key, bytes.NewReader(params.Cover.Data), int64(len(params.Cover.Data)), params.Cover.ContentType); err != nil {
			return domain.Content{}, fmt.Errorf("store cover: %w", err)
		}
		item.CoverImage = key
	}
	item.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveContent(item); err != nil {
		return domain.Content{}, fmt.Errorf("save content: %w", err)
	}
	return item, nil
}

// DeleteContent removes a catalog item and its stored files. Object
// deletions are best effort; a storage hiccup should not leave the
// catalog entry behind.
func (a *App) DeleteContent(ctx context.Context, id string) error {
	item, ok, err := a.store.GetContent(id)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if !ok {
		return ErrContentNotFound
	}
	if a.objects != nil {
		for _, key := range []string{item.CoverImage, item.FilePath} {
			if key == "" {
				continue
			}
			if err := a.objects.Delete(ctx, key); err != nil {
				slog.Warn("delete object failed", "key", key, "error", err)
			}
		}
	}
	if err := a.store.DeleteContent(id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

func extractPDF(data []byte) (int, string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, "", fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return total, strings.TrimSpace(b.String()), nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}
