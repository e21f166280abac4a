package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"lydistories/internal/util"
	"lydistories/pkg/auth"
	"lydistories/pkg/domain"
)

// Register creates an account and returns the user with a fresh
// session token. New accounts always get the reader role; admins are
// promoted through the admin API.
func (a *App) Register(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, "", ErrRegistrationFields
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, "", ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Login checks credentials and issues a session token. Unknown email
// and wrong password produce the same error so the endpoint does not
// reveal which accounts exist.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a bearer token to the current user record.
// The store is authoritative: a valid token for a deleted user fails.
func (a *App) UserFromToken(token string) (domain.User, bool, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// UpdateProfileParams carries the optional profile edits. Zero-valued
// fields are left unchanged; changing the password requires the
// current one.
type UpdateProfileParams struct {
	Name            string
	NewPassword     string
	CurrentPassword string
}

// UpdateProfile applies profile edits for the authenticated user.
func (a *App) UpdateProfile(user domain.User, params UpdateProfileParams) (domain.User, error) {
	if name := strings.TrimSpace(params.Name); name != "" {
		user.Name = name
	}
	if params.NewPassword != "" {
		if !auth.CheckPassword(params.CurrentPassword, user.PasswordHash) {
			return domain.User{}, ErrCurrentPassword
		}
		if err := auth.ValidatePassword(params.NewPassword); err != nil {
			return domain.User{}, err
		}
		hash, err := auth.HashPassword(params.NewPassword)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// UploadAvatar stores a profile picture and records its object key on
// the user.
func (a *App) UploadAvatar(ctx context.Context, user domain.User, up Upload) (domain.User, error) {
	if a.objects == nil {
		return domain.User{}, ErrUploadsDisabled
	}
	ext := safeExt(up.Filename, ".png", ".jpg", ".jpeg", ".webp")
	if ext == "" {
		ext = ".png"
	}
	key := "avatars/" + user.ID + ext
	if err := a.objects.Put(ctx, key, bytes.NewReader(up.Data), int64(len(up.Data)), up.ContentType); err != nil {
		return domain.User{}, fmt.Errorf("store avatar: %w", err)
	}
	user.AvatarURL = key
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}
