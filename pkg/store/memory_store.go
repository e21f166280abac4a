package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"lydistories/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors GormStore semantics,
// including uniqueness conflicts and the conditional confirm flip, and is
// used by tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	email     map[string]string // email -> user ID
	content   map[string]domain.Content
	payments  map[string]domain.Payment
	txnIDs    map[string]string             // transaction ID -> payment ID
	grants    map[string]domain.AccessGrant // key: userID|contentID
	bookmarks map[string]domain.Bookmark    // key: userID|contentID
	progress  map[string]domain.ReadingProgress
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		content:   make(map[string]domain.Content),
		payments:  make(map[string]domain.Payment),
		txnIDs:    make(map[string]string),
		grants:    make(map[string]domain.AccessGrant),
		bookmarks: make(map[string]domain.Bookmark),
		progress:  make(map[string]domain.ReadingProgress),
	}
}

func pairKey(userID, contentID string) string {
	return userID + "|" + contentID
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existingID, ok := m.email[u.Email]; ok && existingID != u.ID {
		return ErrDuplicate
	}
	if old, ok := m.users[u.ID]; ok && old.Email != u.Email {
		delete(m.email, old.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users, newest first.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// DeleteUser removes a user and all rows keyed to them.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.email, u.Email)
	}
	delete(m.users, id)
	for key, g := range m.grants {
		if g.UserID == id {
			delete(m.grants, key)
		}
	}
	for key, b := range m.bookmarks {
		if b.UserID == id {
			delete(m.bookmarks, key)
		}
	}
	for key, p := range m.progress {
		if p.UserID == id {
			delete(m.progress, key)
		}
	}
	for pid, p := range m.payments {
		if p.UserID == id {
			delete(m.txnIDs, p.TransactionID)
			delete(m.payments, pid)
		}
	}
	return nil
}

// CountUsersByRole returns the number of users holding a role.
func (m *MemoryStore) CountUsersByRole(role domain.UserRole) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

// SaveContent stores or updates a content item.
func (m *MemoryStore) SaveContent(c domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[c.ID] = c
	return nil
}

// GetContent retrieves a content item.
func (m *MemoryStore) GetContent(id string) (domain.Content, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.content[id]
	return c, ok, nil
}

// ListContent returns catalog items matching the filter, newest first.
func (m *MemoryStore) ListContent(filter ContentFilter) ([]domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Content, 0, len(m.content))
	for _, c := range m.content {
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Featured && !c.IsFeatured {
			continue
		}
		if filter.Search != "" && !matchesSearch(c, filter.Search) {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// DeleteContent removes a content item and all rows keyed to it.
func (m *MemoryStore) DeleteContent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, id)
	for key, g := range m.grants {
		if g.ContentID == id {
			delete(m.grants, key)
		}
	}
	for key, b := range m.bookmarks {
		if b.ContentID == id {
			delete(m.bookmarks, key)
		}
	}
	for key, p := range m.progress {
		if p.ContentID == id {
			delete(m.progress, key)
		}
	}
	for pid, p := range m.payments {
		if p.ContentID == id {
			delete(m.txnIDs, p.TransactionID)
			delete(m.payments, pid)
		}
	}
	return nil
}

// ContentCount returns number of catalog items.
func (m *MemoryStore) ContentCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content), nil
}

// CreatePayment inserts a new payment attempt.
func (m *MemoryStore) CreatePayment(p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txnIDs[p.TransactionID]; ok {
		return ErrDuplicate
	}
	m.payments[p.ID] = p
	m.txnIDs[p.TransactionID] = p.ID
	return nil
}

// GetPaymentForUser returns a payment only when owned by the given user.
func (m *MemoryStore) GetPaymentForUser(id, userID string) (domain.Payment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok || p.UserID != userID {
		return domain.Payment{}, false, nil
	}
	return p, true, nil
}

// ConfirmPaymentAndGrant mirrors the GormStore transaction: the flip only
// succeeds from pending, and the grant insert is idempotent.
func (m *MemoryStore) ConfirmPaymentAndGrant(paymentID, grantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentConfirmed
	m.payments[paymentID] = p
	key := pairKey(p.UserID, p.ContentID)
	if _, exists := m.grants[key]; !exists {
		m.grants[key] = domain.AccessGrant{
			ID:        grantID,
			UserID:    p.UserID,
			ContentID: p.ContentID,
			GrantedAt: time.Now().UTC(),
		}
	}
	return true, nil
}

// ListPaymentsByUser returns the user's payments with titles, newest first.
func (m *MemoryStore) ListPaymentsByUser(userID string) ([]domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Payment, 0)
	for _, p := range m.payments {
		if p.UserID != userID {
			continue
		}
		if c, ok := m.content[p.ContentID]; ok {
			p.ContentTitle = c.Title
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// ListRecentConfirmedPayments returns latest confirmed payments with names.
func (m *MemoryStore) ListRecentConfirmedPayments(limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Payment, 0)
	for _, p := range m.payments {
		if p.Status != domain.PaymentConfirmed {
			continue
		}
		if c, ok := m.content[p.ContentID]; ok {
			p.ContentTitle = c.Title
		}
		if u, ok := m.users[p.UserID]; ok {
			p.UserName = u.Name
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// ConfirmedPaymentTotals returns confirmed payment count and summed revenue.
func (m *MemoryStore) ConfirmedPaymentTotals() (int, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	revenue := 0.0
	for _, p := range m.payments {
		if p.Status == domain.PaymentConfirmed {
			count++
			revenue += p.Amount
		}
	}
	return count, revenue, nil
}

// TotalSpentByUser sums confirmed payment amounts for a user.
func (m *MemoryStore) TotalSpentByUser(userID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.payments {
		if p.UserID == userID && p.Status == domain.PaymentConfirmed {
			total += p.Amount
		}
	}
	return total, nil
}

// HasGrant reports whether a grant row exists for (user, content).
func (m *MemoryStore) HasGrant(userID, contentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.grants[pairKey(userID, contentID)]
	return ok, nil
}

// ListGrantsByUser returns the user's grants, newest first.
func (m *MemoryStore) ListGrantsByUser(userID string) ([]domain.AccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.AccessGrant, 0)
	for _, g := range m.grants {
		if g.UserID == userID {
			res = append(res, g)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].GrantedAt.After(res[j].GrantedAt) })
	return res, nil
}

// AddBookmark inserts a bookmark; ErrDuplicate when it already exists.
func (m *MemoryStore) AddBookmark(b domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(b.UserID, b.ContentID)
	if _, ok := m.bookmarks[key]; ok {
		return ErrDuplicate
	}
	m.bookmarks[key] = b
	return nil
}

// RemoveBookmark deletes a bookmark if present.
func (m *MemoryStore) RemoveBookmark(userID, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookmarks, pairKey(userID, contentID))
	return nil
}

// ListBookmarksByUser returns the user's bookmarks, newest first.
func (m *MemoryStore) ListBookmarksByUser(userID string) ([]domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Bookmark, 0)
	for _, b := range m.bookmarks {
		if b.UserID == userID {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// CountBookmarksByUser returns the user's bookmark count.
func (m *MemoryStore) CountBookmarksByUser(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, b := range m.bookmarks {
		if b.UserID == userID {
			count++
		}
	}
	return count, nil
}

// UpsertProgress creates or updates reading progress for (user, content).
func (m *MemoryStore) UpsertProgress(p domain.ReadingProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(p.UserID, p.ContentID)
	if existing, ok := m.progress[key]; ok {
		p.ID = existing.ID
	}
	m.progress[key] = p
	return nil
}

// GetProgress returns reading progress for (user, content).
func (m *MemoryStore) GetProgress(userID, contentID string) (domain.ReadingProgress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[pairKey(userID, contentID)]
	return p, ok, nil
}

func matchesSearch(c domain.Content, search string) bool {
	return containsFold(c.Title, search) ||
		containsFold(c.Author, search) ||
		containsFold(c.Description, search)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
