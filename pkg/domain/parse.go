package domain

import "strings"

// ParseUserRole maps a raw string to a closed role value.
func ParseUserRole(raw string) (UserRole, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleUser):
		return RoleUser, true
	case string(RoleAdmin):
		return RoleAdmin, true
	default:
		return "", false
	}
}

// ParseCategory maps a raw string to a closed category value.
func ParseCategory(raw string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(CategoryBook):
		return CategoryBook, true
	case string(CategoryGuide):
		return CategoryGuide, true
	case string(CategoryArticle):
		return CategoryArticle, true
	case string(CategoryDocument):
		return CategoryDocument, true
	default:
		return "", false
	}
}
