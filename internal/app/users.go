package app

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"lydistories/pkg/domain"
)

// ListUsers returns every account, for the admin user table.
func (a *App) ListUsers() ([]domain.User, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUserParams carries admin edits to an account; nil fields keep
// their stored value.
type UpdateUserParams struct {
	Name *string
	Role *string
}

// UpdateUser lets an admin rename an account or change its role.
func (a *App) UpdateUser(id string, params UpdateUserParams) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return domain.User{}, ErrNameRequired
		}
		user.Name = name
	}
	if params.Role != nil {
		role, ok := domain.ParseUserRole(*params.Role)
		if !ok {
			return domain.User{}, ErrInvalidRole
		}
		user.Role = role
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// DeleteUser removes a reader account. Admin accounts must be demoted
// first, which keeps a lone admin from locking everyone out.
func (a *App) DeleteUser(actor domain.User, id string) error {
	if actor.ID == id {
		return ErrCannotDeleteSelf
	}
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if user.Role == domain.RoleAdmin {
		return ErrCannotDeleteAdmin
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Stats is the admin overview: account counts, catalog size, and
// confirmed payment totals, plus the latest confirmed payments.
type Stats struct {
	UserCount      int              `json:"user_count"`
	AdminCount     int              `json:"admin_count"`
	ContentCount   int              `json:"content_count"`
	PaymentCount   int              `json:"payment_count"`
	Revenue        float64          `json:"revenue"`
	Currency       string           `json:"currency"`
	RecentPayments []domain.Payment `json:"recent_payments"`
}

const recentPaymentsLimit = 10

// GetStats collects the admin dashboard numbers concurrently.
func (a *App) GetStats() (Stats, error) {
	var (
		g     errgroup.Group
		stats Stats
	)
	g.Go(func() error {
		n, err := a.store.CountUsersByRole(domain.RoleUser)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		stats.UserCount = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountUsersByRole(domain.RoleAdmin)
		if err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		stats.AdminCount = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.ContentCount()
		if err != nil {
			return fmt.Errorf("count content: %w", err)
		}
		stats.ContentCount = n
		return nil
	})
	g.Go(func() error {
		count, revenue, err := a.store.ConfirmedPaymentTotals()
		if err != nil {
			return fmt.Errorf("payment totals: %w", err)
		}
		stats.PaymentCount = count
		stats.Revenue = revenue
		return nil
	})
	g.Go(func() error {
		recent, err := a.store.ListRecentConfirmedPayments(recentPaymentsLimit)
		if err != nil {
			return fmt.Errorf("recent payments: %w", err)
		}
		stats.RecentPayments = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	stats.Currency = domain.DefaultCurrency
	return stats, nil
}
