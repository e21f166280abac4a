package app

import (
	"context"
	"errors"
	"testing"

	"lydistories/pkg/domain"
)

func TestBookmarks(t *testing.T) {
	a, st := newTestApp(t)
	ctx := context.Background()
	user := seedUser(t, a, "Peter", "peter@example.com")
	item := seedContent(t, st, "River Songs", 1000)

	if _, err := a.AddBookmark(user, "missing"); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrContentNotFound)
	}
	if _, err := a.AddBookmark(user, item.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := a.AddBookmark(user, item.ID); !errors.Is(err, ErrBookmarkExists) {
		t.Fatalf("duplicate err = %v, want %v", err, ErrBookmarkExists)
	}

	items, err := a.ListBookmarks(ctx, user)
	if err != nil || len(items) != 1 {
		t.Fatalf("list = %+v, %v; want one bookmark", items, err)
	}
	if items[0].Content.ID != item.ID || items[0].Content.FullText != "" {
		t.Fatalf("bookmark content = %+v", items[0].Content)
	}

	if err := a.RemoveBookmark(user, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removal is idempotent.
	if err := a.RemoveBookmark(user, item.ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	items, err = a.ListBookmarks(ctx, user)
	if err != nil || len(items) != 0 {
		t.Fatalf("list after remove = %+v, %v; want empty", items, err)
	}
}

func TestReadingProgress(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Queen", "queen@example.com")
	item := seedContent(t, st, "Hill Walks", 1000)

	if _, err := a.SaveProgress(user, item.ID, 120, 3); !errors.Is(err, ErrInvalidProgress) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidProgress)
	}
	if _, err := a.SaveProgress(user, item.ID, -1, 0); !errors.Is(err, ErrInvalidProgress) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidProgress)
	}
	if _, err := a.SaveProgress(user, "missing", 10, 1); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrContentNotFound)
	}

	if _, err := a.SaveProgress(user, item.ID, 25, 12); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := a.SaveProgress(user, item.ID, 60, 30); err != nil {
		t.Fatalf("update: %v", err)
	}
	progress, err := a.GetProgress(user, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if progress.ProgressPercent != 60 || progress.LastPage != 30 {
		t.Fatalf("progress = %+v, want 60%% page 30", progress)
	}

	// Unread content reads as zero progress rather than an error.
	other := seedContent(t, st, "Unread", 500)
	progress, err = a.GetProgress(user, other.ID)
	if err != nil || progress.ProgressPercent != 0 {
		t.Fatalf("unread progress = %+v, %v", progress, err)
	}
}

func TestDashboardAggregates(t *testing.T) {
	a, st := newTestApp(t)
	ctx := context.Background()
	user := seedUser(t, a, "Rita", "rita@example.com")
	first := seedContent(t, st, "First Buy", 3000)
	second := seedContent(t, st, "Second Buy", 2000)
	unbought := seedContent(t, st, "Window Shopping", 9000)

	for _, item := range []struct {
		id string
	}{{first.ID}, {second.ID}} {
		quote, err := a.InitiatePayment(user, item.id, "0700000000")
		if err != nil {
			t.Fatalf("initiate %s: %v", item.id, err)
		}
		if _, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint); err != nil {
			t.Fatalf("confirm %s: %v", item.id, err)
		}
	}
	if _, err := a.AddBookmark(user, unbought.ID); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if _, err := a.SaveProgress(user, first.ID, 40, 8); err != nil {
		t.Fatalf("progress: %v", err)
	}

	dash, err := a.GetDashboard(ctx, user)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dash.Library) != 2 {
		t.Fatalf("library size = %d, want 2", len(dash.Library))
	}
	if dash.BookmarkCount != 1 {
		t.Fatalf("bookmark count = %d, want 1", dash.BookmarkCount)
	}
	if dash.TotalSpent != 5000 || dash.Currency != "UGX" {
		t.Fatalf("total spent = %v %s, want 5000 UGX", dash.TotalSpent, dash.Currency)
	}
	var withProgress int
	for _, entry := range dash.Library {
		if entry.Content.FullText != "" {
			t.Fatalf("dashboard leaks full text: %+v", entry.Content)
		}
		if entry.Progress != nil {
			withProgress++
			if entry.Content.ID != first.ID || entry.Progress.ProgressPercent != 40 {
				t.Fatalf("progress entry = %+v", entry)
			}
		}
	}
	if withProgress != 1 {
		t.Fatalf("entries with progress = %d, want 1", withProgress)
	}
}

func TestStats(t *testing.T) {
	a, st := newTestApp(t)

	admin := seedUser(t, a, "Root", "root@example.com")
	admin.Role = domain.RoleAdmin
	if err := st.SaveUser(admin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	buyer := seedUser(t, a, "Sam", "sam@example.com")
	item := seedContent(t, st, "Bestseller", 4000)
	other := seedContent(t, st, "Unconfirmed", 7000)

	quote, err := a.InitiatePayment(buyer, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := a.ConfirmPayment(buyer, quote.PaymentID, quote.OTPHint); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// A pending payment that never confirms must not count as revenue.
	if _, err := a.InitiatePayment(buyer, other.ID, "0700000000"); err != nil {
		t.Fatalf("initiate pending: %v", err)
	}

	stats, err := a.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.UserCount != 1 || stats.AdminCount != 1 {
		t.Fatalf("user counts = %d/%d, want 1/1", stats.UserCount, stats.AdminCount)
	}
	if stats.ContentCount != 2 {
		t.Fatalf("content count = %d, want 2", stats.ContentCount)
	}
	if stats.PaymentCount != 1 || stats.Revenue != 4000 {
		t.Fatalf("payments = %d for %v, want 1 for 4000", stats.PaymentCount, stats.Revenue)
	}
	if len(stats.RecentPayments) != 1 || stats.RecentPayments[0].UserName == "" {
		t.Fatalf("recent payments = %+v, want one with the buyer's name", stats.RecentPayments)
	}
}
