package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type Category string

const (
	CategoryBook     Category = "book"
	CategoryGuide    Category = "guide"
	CategoryArticle  Category = "article"
	CategoryDocument Category = "document"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	// PaymentFailed is declared for storage round-trips; no code path sets it.
	PaymentFailed PaymentStatus = "failed"
)

const DefaultCurrency = "UGX"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Content struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	PreviewText string    `json:"preview_text"`
	CoverImage  string    `json:"cover_image,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	FullText    string    `json:"full_text,omitempty"`
	PageCount   int       `json:"page_count"`
	Price       float64   `json:"price"`
	IsFeatured  bool      `json:"is_featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Payment struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ContentID     string        `json:"content_id"`
	PhoneNumber   string        `json:"phone_number"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	TransactionID string        `json:"transaction_id"`
	OTPCode       string        `json:"-"`
	Status        PaymentStatus `json:"status"`
	// ContentTitle and UserName are filled on joined reads; not persisted.
	ContentTitle string    `json:"content_title,omitempty"`
	UserName     string    `json:"user_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccessGrant is the durable proof that a user may read a content item's
// restricted fields.
type AccessGrant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	GrantedAt time.Time `json:"granted_at"`
}

type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ReadingProgress struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ContentID       string    `json:"content_id"`
	ProgressPercent float64   `json:"progress_percent"`
	LastPage        int       `json:"last_page"`
	UpdatedAt       time.Time `json:"updated_at"`
}
