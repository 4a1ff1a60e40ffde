package notifications

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/metrics"
	"myautowhiz-backend/internal/models"
)

// Store is the notification persistence layer. Every query carries the owner's user id.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// ListOptions selects a page of notifications.
type ListOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Page is one page of notifications plus the caller's unread count.
type Page struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	UnreadCount   int64                 `json:"unreadCount"`
	HasMore       bool                  `json:"hasMore"`
}

func (s *Store) owned(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

// List returns the caller's notifications, newest first.
func (s *Store) List(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	scoped := func() *gorm.DB {
		q := s.owned(ctx, userID)
		if opts.UnreadOnly {
			q = q.Where("read = ?", false)
		}
		return q
	}

	page := &Page{Notifications: []models.Notification{}}
	if err := scoped().Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	if err := scoped().Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&page.Notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	page.UnreadCount = unread
	page.HasMore = int64(opts.Offset+opts.Limit) < page.Total
	return page, nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.owned(ctx, userID).Where("read = ?", false).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// Create inserts a notification using tx, or the store's database when tx is nil.
func (s *Store) Create(ctx context.Context, tx *gorm.DB, n *models.Notification) error {
	if tx == nil {
		tx = s.db
	}
	if n.UserID == "" {
		return apperrors.Validation("notification requires a user")
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()
	return nil
}

// MarkRead marks the given notifications as read. Marking a single id that the caller
// does not own is a NotFound error.
func (s *Store) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.Validation("no notification ids provided")
	}
	res := s.owned(ctx, userID).Where("id IN ?", ids).Updates(map[string]interface{}{
		"read":    true,
		"read_at": gorm.Expr("COALESCE(read_at, ?)", s.now().UTC()),
	})
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", res.Error)
	}
	if len(ids) == 1 && res.RowsAffected == 0 {
		return 0, apperrors.NotFound("Notification")
	}
	return res.RowsAffected, nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.owned(ctx, userID).Where("read = ?", false).Updates(map[string]interface{}{
		"read":    true,
		"read_at": s.now().UTC(),
	})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes the given notifications. Deleting a single id the caller does not own
// is a NotFound error.
func (s *Store) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.Validation("no notification ids provided")
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete notifications: %w", res.Error)
	}
	if len(ids) == 1 && res.RowsAffected == 0 {
		return 0, apperrors.NotFound("Notification")
	}
	return res.RowsAffected, nil
}

// DeleteAll removes every notification of the caller.
func (s *Store) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete all notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteRead removes the caller's read notifications only.
func (s *Store) DeleteRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND read = ?", userID, true).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete read notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
