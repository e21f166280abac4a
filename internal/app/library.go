package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"lydistories/internal/util"
	"lydistories/pkg/domain"
	"lydistories/pkg/store"
)

// BookmarkItem pairs a bookmark with a catalog summary of the content
// it points at.
type BookmarkItem struct {
	domain.Bookmark
	Content ContentView `json:"content"`
}

// AddBookmark saves a content item to the user's reading list.
func (a *App) AddBookmark(user domain.User, contentID string) (domain.Bookmark, error) {
	if _, ok, err := a.store.GetContent(contentID); err != nil {
		return domain.Bookmark{}, fmt.Errorf("load content: %w", err)
	} else if !ok {
		return domain.Bookmark{}, ErrContentNotFound
	}
	bookmark := domain.Bookmark{
		ID:        util.NewID(),
		UserID:    user.ID,
		ContentID: contentID,
		CreatedAt: time.Now().UTC(),
	}
	err := a.store.AddBookmark(bookmark)
	if errors.Is(err, store.ErrDuplicate) {
		return domain.Bookmark{}, ErrBookmarkExists
	}
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("add bookmark: %w", err)
	}
	return bookmark, nil
}

// RemoveBookmark drops a content item from the user's reading list.
// Removing a bookmark that does not exist is not an error.
func (a *App) RemoveBookmark(user domain.User, contentID string) error {
	if err := a.store.RemoveBookmark(user.ID, contentID); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

// ListBookmarks returns the user's reading list, newest first.
// Bookmarks whose content was removed from the catalog are skipped.
func (a *App) ListBookmarks(ctx context.Context, user domain.User) ([]BookmarkItem, error) {
	bookmarks, err := a.store.ListBookmarksByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	items := make([]BookmarkItem, 0, len(bookmarks))
	for _, b := range bookmarks {
		content, ok, err := a.store.GetContent(b.ContentID)
		if err != nil {
			return nil, fmt.Errorf("load content: %w", err)
		}
		if !ok {
			continue
		}
		hasAccess, err := a.HasAccess(user, content.ID)
		if err != nil {
			return nil, fmt.Errorf("check access: %w", err)
		}
		view := a.newContentView(ctx, content, hasAccess)
		view.FullText = ""
		view.FileURL = ""
		items = append(items, BookmarkItem{Bookmark: b, Content: view})
	}
	return items, nil
}

// SaveProgress records how far the user has read a content item.
func (a *App) SaveProgress(user domain.User, contentID string, percent float64, lastPage int) (domain.ReadingProgress, error) {
	if percent < 0 || percent > 100 {
		return domain.ReadingProgress{}, ErrInvalidProgress
	}
	if _, ok, err := a.store.GetContent(contentID); err != nil {
		return domain.ReadingProgress{}, fmt.Errorf("load content: %w", err)
	} else if !ok {
		return domain.ReadingProgress{}, ErrContentNotFound
	}
	progress := domain.ReadingProgress{
		ID:              util.NewID(),
		UserID:          user.ID,
		ContentID:       contentID,
		ProgressPercent: percent,
		LastPage:        lastPage,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := a.store.UpsertProgress(progress); err != nil {
		return domain.ReadingProgress{}, fmt.Errorf("save progress: %w", err)
	}
	return progress, nil
}

// GetProgress returns the user's saved position in a content item.
// A missing record reads as zero progress.
func (a *App) GetProgress(user domain.User, contentID string) (domain.ReadingProgress, error) {
	progress, ok, err := a.store.GetProgress(user.ID, contentID)
	if err != nil {
		return domain.ReadingProgress{}, fmt.Errorf("load progress: %w", err)
	}
	if !ok {
		return domain.ReadingProgress{UserID: user.ID, ContentID: contentID}, nil
	}
	return progress, nil
}

// LibraryItem is a purchased content item with the user's saved
// reading position, if any.
type LibraryItem struct {
	Content   ContentView             `json:"content"`
	GrantedAt time.Time               `json:"granted_at"`
	Progress  *domain.ReadingProgress `json:"progress,omitempty"`
}

// Dashboard aggregates the user's library state for the home screen.
type Dashboard struct {
	Library       []LibraryItem `json:"library"`
	BookmarkCount int           `json:"bookmark_count"`
	TotalSpent    float64       `json:"total_spent"`
	Currency      string        `json:"currency"`
}

// GetDashboard gathers the user's purchases, bookmark count, and
// lifetime spend concurrently.
func (a *App) GetDashboard(ctx context.Context, user domain.User) (Dashboard, error) {
	var (
		g       errgroup.Group
		library []LibraryItem
		marks   int
		spent   float64
	)
	g.Go(func() error {
		grants, err := a.store.ListGrantsByUser(user.ID)
		if err != nil {
			return fmt.Errorf("list grants: %w", err)
		}
		library = make([]LibraryItem, 0, len(grants))
		for _, grant := range grants {
			content, ok, err := a.store.GetContent(grant.ContentID)
			if err != nil {
				return fmt.Errorf("load content: %w", err)
			}
			if !ok {
				continue
			}
			view := a.newContentView(ctx, content, true)
			view.FullText = ""
			view.FileURL = ""
			item := LibraryItem{Content: view, GrantedAt: grant.GrantedAt}
			if progress, ok, err := a.store.GetProgress(user.ID, content.ID); err != nil {
				return fmt.Errorf("load progress: %w", err)
			} else if ok {
				p := progress
				item.Progress = &p
			}
			library = append(library, item)
		}
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountBookmarksByUser(user.ID)
		if err != nil {
			return fmt.Errorf("count bookmarks: %w", err)
		}
		marks = n
		return nil
	})
	g.Go(func() error {
		total, err := a.store.TotalSpentByUser(user.ID)
		if err != nil {
			return fmt.Errorf("total spent: %w", err)
		}
		spent = total
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Library:       library,
		BookmarkCount: marks,
		TotalSpent:    spent,
		Currency:      domain.DefaultCurrency,
	}, nil
}
