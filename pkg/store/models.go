package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	AvatarURL    string
	CreatedAt    time.Time `gorm:"not null"`
}

type ContentModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Author      string
	Category    string `gorm:"not null;index"`
	Description string `gorm:"type:text"`
	PreviewText string `gorm:"type:text"`
	CoverImage  string
	FilePath    string
	FullText    string `gorm:"type:text"`
	PageCount   int
	Price       float64 `gorm:"not null"`
	IsFeatured  bool
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type PaymentModel struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	ContentID     string `gorm:"not null;index"`
	PhoneNumber   string `gorm:"not null"`
	Amount        float64
	Currency      string `gorm:"not null"`
	TransactionID string `gorm:"uniqueIndex;not null"`
	OTPCode       string
	Status        string    `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

type AccessGrantModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_grant_user_content"`
	ContentID string    `gorm:"not null;uniqueIndex:idx_grant_user_content"`
	GrantedAt time.Time `gorm:"not null"`
}

type BookmarkModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_bookmark_user_content"`
	ContentID string    `gorm:"not null;uniqueIndex:idx_bookmark_user_content"`
	CreatedAt time.Time `gorm:"not null"`
}

type ReadingProgressModel struct {
	ID              string  `gorm:"primaryKey"`
	UserID          string  `gorm:"not null;uniqueIndex:idx_progress_user_content"`
	ContentID       string  `gorm:"not null;uniqueIndex:idx_progress_user_content"`
	ProgressPercent float64 `gorm:"not null"`
	LastPage        int
	UpdatedAt       time.Time `gorm:"not null"`
}
