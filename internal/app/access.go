package app

import "lydistories/pkg/domain"

// HasAccess reports whether the user may read a content item's
// restricted fields. Admins can read everything; readers need an
// access grant from a confirmed payment.
func (a *App) HasAccess(user domain.User, contentID string) (bool, error) {
	switch user.Role {
	case domain.RoleAdmin:
		return true, nil
	default:
		return a.store.HasGrant(user.ID, contentID)
	}
}
