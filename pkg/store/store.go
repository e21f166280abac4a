package store

import (
	"errors"

	"lydistories/pkg/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Implementations normalize driver-specific conflict errors to this value.
var ErrDuplicate = errors.New("duplicate record")

// ContentFilter narrows catalog listings.
type ContentFilter struct {
	Category domain.Category
	Search   string
	Featured bool
}

// Store defines persistence operations for users, content, payments,
// access grants, and reading state.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	DeleteUser(id string) error
	CountUsersByRole(role domain.UserRole) (int, error)

	// content
	SaveContent(domain.Content) error
	GetContent(id string) (domain.Content, bool, error)
	ListContent(filter ContentFilter) ([]domain.Content, error)
	DeleteContent(id string) error
	ContentCount() (int, error)

	// payments
	CreatePayment(domain.Payment) error
	GetPaymentForUser(id, userID string) (domain.Payment, bool, error)
	// ConfirmPaymentAndGrant flips the payment from pending to confirmed and
	// inserts the access grant, atomically. It reports false when the payment
	// was not pending anymore (lost race or already processed).
	ConfirmPaymentAndGrant(paymentID, grantID string) (bool, error)
	ListPaymentsByUser(userID string) ([]domain.Payment, error)
	ListRecentConfirmedPayments(limit int) ([]domain.Payment, error)
	ConfirmedPaymentTotals() (count int, revenue float64, err error)
	TotalSpentByUser(userID string) (float64, error)

	// access grants
	HasGrant(userID, contentID string) (bool, error)
	ListGrantsByUser(userID string) ([]domain.AccessGrant, error)

	// bookmarks
	AddBookmark(domain.Bookmark) error
	RemoveBookmark(userID, contentID string) error
	ListBookmarksByUser(userID string) ([]domain.Bookmark, error)
	CountBookmarksByUser(userID string) (int, error)

	// reading progress
	UpsertProgress(domain.ReadingProgress) error
	GetProgress(userID, contentID string) (domain.ReadingProgress, bool, error)
}

// SessionStore issues and validates session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
}
