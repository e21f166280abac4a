package app

import "errors"

// Sentinel errors surfaced to the HTTP layer, which maps them to
// status codes with errors.Is.
var (
	ErrRegistrationFields = errors.New("name, email and password are required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidRole        = errors.New("unknown user role")
	ErrCurrentPassword    = errors.New("current password is incorrect")
	ErrCannotDeleteAdmin  = errors.New("admin accounts cannot be deleted")
	ErrCannotDeleteSelf   = errors.New("you cannot delete your own account")

	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidCategory = errors.New("unknown content category")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrContentNotFound = errors.New("content not found")

	ErrPaymentFields   = errors.New("content ID and phone number are required")
	ErrInvalidPhone    = errors.New("enter a valid phone number (07XXXXXXXX or +256XXXXXXXXX)")
	ErrAlreadyGranted  = errors.New("you already have access to this content")
	ErrConfirmFields   = errors.New("payment ID and confirmation code are required")
	ErrPaymentNotFound = errors.New("payment not found or already processed")
	ErrInvalidOTP      = errors.New("invalid confirmation code")

	ErrBookmarkExists  = errors.New("content is already bookmarked")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	ErrUploadsDisabled = errors.New("file uploads are not configured")
)
