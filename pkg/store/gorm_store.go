package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"lydistories/pkg/domain"
)

const migrateLockID int64 = 52415241

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ContentModel{},
			&PaymentModel{},
			&AccessGrantModel{},
			&BookmarkModel{},
			&ReadingProgressModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return translateErr(s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "avatar_url"}),
	}).Create(&model).Error)
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users, newest first.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// DeleteUser removes a user and all rows keyed to them.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BookmarkModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReadingProgressModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&AccessGrantModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&PaymentModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// CountUsersByRole returns the number of users holding a role.
func (s *GormStore) CountUsersByRole(role domain.UserRole) (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveContent stores or updates a content item.
func (s *GormStore) SaveContent(c domain.Content) error {
	model := contentToModel(c)
	return translateErr(s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "author", "category", "description", "preview_text",
			"cover_image", "file_path", "full_text", "page_count", "price",
			"is_featured", "updated_at",
		}),
	}).Create(&model).Error)
}

// GetContent retrieves a content item.
func (s *GormStore) GetContent(id string) (domain.Content, bool, error) {
	var model ContentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Content{}, false, nil
		}
		return domain.Content{}, false, err
	}
	return contentFromModel(model), true, nil
}

// ListContent returns catalog items matching the filter, newest first.
func (s *GormStore) ListContent(filter ContentFilter) ([]domain.Content, error) {
	tx := s.db.Model(&ContentModel{})
	if filter.Category != "" {
		tx = tx.Where("category = ?", string(filter.Category))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		tx = tx.Where("title ILIKE ? OR author ILIKE ? OR description ILIKE ?", pattern, pattern, pattern)
	}
	if filter.Featured {
		tx = tx.Where("is_featured = ?", true)
	}
	var models []ContentModel
	if err := tx.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Content, 0, len(models))
	for _, m := range models {
		res = append(res, contentFromModel(m))
	}
	return res, nil
}

// DeleteContent removes a content item and all rows keyed to it.
func (s *GormStore) DeleteContent(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BookmarkModel{}, "content_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReadingProgressModel{}, "content_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&AccessGrantModel{}, "content_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&PaymentModel{}, "content_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ContentModel{}, "id = ?", id).Error
	})
}

// ContentCount returns number of catalog items.
func (s *GormStore) ContentCount() (int, error) {
	var count int64
	if err := s.db.Model(&ContentModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreatePayment inserts a new payment attempt.
func (s *GormStore) CreatePayment(p domain.Payment) error {
	model := paymentToModel(p)
	return translateErr(s.db.Create(&model).Error)
}

// GetPaymentForUser returns a payment only when owned by the given user.
func (s *GormStore) GetPaymentForUser(id, userID string) (domain.Payment, bool, error) {
	var model PaymentModel
	if err := s.db.First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}
	return paymentFromModel(model), true, nil
}

// ConfirmPaymentAndGrant flips the payment to confirmed and inserts the
// access grant in one transaction. The flip is conditioned on the current
// pending status, so only one of two racing confirmations can succeed; the
// grant insert is a no-op when the grant already exists.
func (s *GormStore) ConfirmPaymentAndGrant(paymentID, grantID string) (bool, error) {
	flipped := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PaymentModel{}).
			Where("id = ? AND status = ?", paymentID, string(domain.PaymentPending)).
			Update("status", string(domain.PaymentConfirmed))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var payment PaymentModel
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			return err
		}
		grant := AccessGrantModel{
			ID:        grantID,
			UserID:    payment.UserID,
			ContentID: payment.ContentID,
			GrantedAt: time.Now().UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "content_id"}},
			DoNothing: true,
		}).Create(&grant).Error; err != nil {
			return err
		}
		flipped = true
		return nil
	})
	return flipped, err
}

type paymentJoinRow struct {
	PaymentModel
	ContentTitle string
	UserName     string
}

// ListPaymentsByUser returns the user's payments joined with content titles,
// newest first.
func (s *GormStore) ListPaymentsByUser(userID string) ([]domain.Payment, error) {
	var rows []paymentJoinRow
	if err := s.db.Table("payment_models AS p").
		Select("p.*, c.title AS content_title").
		Joins("LEFT JOIN content_models c ON c.id = p.content_id").
		Where("p.user_id = ?", userID).
		Order("p.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return paymentsFromJoinRows(rows), nil
}

// ListRecentConfirmedPayments returns the latest confirmed payments joined
// with user names and content titles.
func (s *GormStore) ListRecentConfirmedPayments(limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []paymentJoinRow
	if err := s.db.Table("payment_models AS p").
		Select("p.*, c.title AS content_title, u.name AS user_name").
		Joins("LEFT JOIN content_models c ON c.id = p.content_id").
		Joins("LEFT JOIN user_models u ON u.id = p.user_id").
		Where("p.status = ?", string(domain.PaymentConfirmed)).
		Order("p.created_at DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return paymentsFromJoinRows(rows), nil
}

// ConfirmedPaymentTotals returns confirmed payment count and summed revenue.
func (s *GormStore) ConfirmedPaymentTotals() (int, float64, error) {
	var agg struct {
		Count   int64
		Revenue float64
	}
	if err := s.db.Model(&PaymentModel{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS revenue").
		Where("status = ?", string(domain.PaymentConfirmed)).
		Scan(&agg).Error; err != nil {
		return 0, 0, err
	}
	return int(agg.Count), agg.Revenue, nil
}

// TotalSpentByUser sums confirmed payment amounts for a user.
func (s *GormStore) TotalSpentByUser(userID string) (float64, error) {
	var total float64
	if err := s.db.Model(&PaymentModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ?", userID, string(domain.PaymentConfirmed)).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// HasGrant reports whether a grant row exists for (user, content).
func (s *GormStore) HasGrant(userID, contentID string) (bool, error) {
	var count int64
	if err := s.db.Model(&AccessGrantModel{}).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListGrantsByUser returns the user's grants, newest first.
func (s *GormStore) ListGrantsByUser(userID string) ([]domain.AccessGrant, error) {
	var models []AccessGrantModel
	if err := s.db.Where("user_id = ?", userID).
		Order("granted_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AccessGrant, 0, len(models))
	for _, m := range models {
		res = append(res, grantFromModel(m))
	}
	return res, nil
}

// AddBookmark inserts a bookmark; ErrDuplicate when it already exists.
func (s *GormStore) AddBookmark(b domain.Bookmark) error {
	model := bookmarkToModel(b)
	return translateErr(s.db.Create(&model).Error)
}

// RemoveBookmark deletes a bookmark if present.
func (s *GormStore) RemoveBookmark(userID, contentID string) error {
	return s.db.Delete(&BookmarkModel{}, "user_id = ? AND content_id = ?", userID, contentID).Error
}

// ListBookmarksByUser returns the user's bookmarks, newest first.
func (s *GormStore) ListBookmarksByUser(userID string) ([]domain.Bookmark, error) {
	var models []BookmarkModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bookmark, 0, len(models))
	for _, m := range models {
		res = append(res, bookmarkFromModel(m))
	}
	return res, nil
}

// CountBookmarksByUser returns the user's bookmark count.
func (s *GormStore) CountBookmarksByUser(userID string) (int, error) {
	var count int64
	if err := s.db.Model(&BookmarkModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// UpsertProgress creates or updates reading progress for (user, content).
func (s *GormStore) UpsertProgress(p domain.ReadingProgress) error {
	model := progressToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"progress_percent", "last_page", "updated_at"}),
	}).Create(&model).Error
}

// GetProgress returns reading progress for (user, content).
func (s *GormStore) GetProgress(userID, contentID string) (domain.ReadingProgress, bool, error) {
	var model ReadingProgressModel
	if err := s.db.First(&model, "user_id = ? AND content_id = ?", userID, contentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ReadingProgress{}, false, nil
		}
		return domain.ReadingProgress{}, false, err
	}
	return progressFromModel(model), true, nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func paymentsFromJoinRows(rows []paymentJoinRow) []domain.Payment {
	res := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		p := paymentFromModel(row.PaymentModel)
		p.ContentTitle = row.ContentTitle
		p.UserName = row.UserName
		res = append(res, p)
	}
	return res
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		AvatarURL:    u.AvatarURL,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role, ok := domain.ParseUserRole(m.Role)
	if !ok {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         role,
		AvatarURL:    m.AvatarURL,
		CreatedAt:    m.CreatedAt,
	}
}

func contentToModel(c domain.Content) ContentModel {
	return ContentModel{
		ID:          c.ID,
		Title:       c.Title,
		Author:      c.Author,
		Category:    string(c.Category),
		Description: c.Description,
		PreviewText: c.PreviewText,
		CoverImage:  c.CoverImage,
		FilePath:    c.FilePath,
		FullText:    c.FullText,
		PageCount:   c.PageCount,
		Price:       c.Price,
		IsFeatured:  c.IsFeatured,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func contentFromModel(m ContentModel) domain.Content {
	category, ok := domain.ParseCategory(m.Category)
	if !ok {
		category = domain.CategoryArticle
	}
	return domain.Content{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		Category:    category,
		Description: m.Description,
		PreviewText: m.PreviewText,
		CoverImage:  m.CoverImage,
		FilePath:    m.FilePath,
		FullText:    m.FullText,
		PageCount:   m.PageCount,
		Price:       m.Price,
		IsFeatured:  m.IsFeatured,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func paymentToModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:            p.ID,
		UserID:        p.UserID,
		ContentID:     p.ContentID,
		PhoneNumber:   p.PhoneNumber,
		Amount:        p.Amount,
		Currency:      p.Currency,
		TransactionID: p.TransactionID,
		OTPCode:       p.OTPCode,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}

func paymentFromModel(m PaymentModel) domain.Payment {
	return domain.Payment{
		ID:            m.ID,
		UserID:        m.UserID,
		ContentID:     m.ContentID,
		PhoneNumber:   m.PhoneNumber,
		Amount:        m.Amount,
		Currency:      m.Currency,
		TransactionID: m.TransactionID,
		OTPCode:       m.OTPCode,
		Status:        domain.PaymentStatus(m.Status),
		CreatedAt:     m.CreatedAt,
	}
}

func grantFromModel(m AccessGrantModel) domain.AccessGrant {
	return domain.AccessGrant{
		ID:        m.ID,
		UserID:    m.UserID,
		ContentID: m.ContentID,
		GrantedAt: m.GrantedAt,
	}
}

func bookmarkToModel(b domain.Bookmark) BookmarkModel {
	return BookmarkModel{
		ID:        b.ID,
		UserID:    b.UserID,
		ContentID: b.ContentID,
		CreatedAt: b.CreatedAt,
	}
}

func bookmarkFromModel(m BookmarkModel) domain.Bookmark {
	return domain.Bookmark{
		ID:        m.ID,
		UserID:    m.UserID,
		ContentID: m.ContentID,
		CreatedAt: m.CreatedAt,
	}
}

func progressToModel(p domain.ReadingProgress) ReadingProgressModel {
	return ReadingProgressModel{
		ID:              p.ID,
		UserID:          p.UserID,
		ContentID:       p.ContentID,
		ProgressPercent: p.ProgressPercent,
		LastPage:        p.LastPage,
		UpdatedAt:       p.UpdatedAt,
	}
}

func progressFromModel(m ReadingProgressModel) domain.ReadingProgress {
	return domain.ReadingProgress{
		ID:              m.ID,
		UserID:          m.UserID,
		ContentID:       m.ContentID,
		ProgressPercent: m.ProgressPercent,
		LastPage:        m.LastPage,
		UpdatedAt:       m.UpdatedAt,
	}
}
