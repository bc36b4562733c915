// Package notifications serves the unread notifications shown on every
// signed-in page. Lists are cached per user for a short time and dropped
// whenever the user's notifications change
package notifications

import (
	"database/sql"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/storage"
	"go.uber.org/zap"
)

const (
	// DefaultLimit is how many unread notifications a page shows
	DefaultLimit = 10

	defaultCacheSize = 1024
	defaultCacheTTL  = 30 * time.Second
)

// Service reads and updates notifications through a small per-user cache
type Service struct {
	db     *sql.DB
	logger *zap.Logger
	cache  *expirable.LRU[string, []models.Notification]
	now    func() time.Time
	list   func(userID string) ([]models.Notification, error)

	// gen counts invalidations per user. A list read before an invalidation
	// is returned but not cached
	mu  sync.Mutex
	gen map[string]uint64
}

// NewService creates a notification service. A ttl of zero uses the default
func NewService(db *sql.DB, logger *zap.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	s := &Service{
		db:     db,
		logger: logger,
		cache:  expirable.NewLRU[string, []models.Notification](defaultCacheSize, nil, ttl),
		now:    time.Now,
		gen:    make(map[string]uint64),
	}
	s.list = func(userID string) ([]models.Notification, error) {
		return storage.ListUnreadNotifications(s.db, userID, DefaultLimit)
	}
	return s
}

// Unread returns the user's newest unread notifications
func (s *Service) Unread(userID string) ([]models.Notification, error) {
	if cached, ok := s.cache.Get(userID); ok {
		return cached, nil
	}

	s.mu.Lock()
	gen := s.gen[userID]
	s.mu.Unlock()

	list, err := s.list(userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen[userID] == gen {
		s.cache.Add(userID, list)
	}
	s.mu.Unlock()
	return list, nil
}

// Notify stores a new notification for the user
func (s *Service) Notify(userID string, kind models.NotificationKind, message, link string) error {
	n := &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Message: message,
		Link:    link,
	}
	if err := storage.CreateNotification(s.db, n); err != nil {
		return err
	}
	s.Invalidate(userID)
	s.logger.Debug("notification created",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)))
	return nil
}

// MarkRead marks one notification read. storage.ErrNotFound is returned when
// it does not belong to the user or was already read
func (s *Service) MarkRead(userID, id string) error {
	defer s.Invalidate(userID)
	return storage.MarkNotificationRead(s.db, userID, id, s.now())
}

// MarkAllRead marks every unread notification of the user read
func (s *Service) MarkAllRead(userID string) (int64, error) {
	defer s.Invalidate(userID)
	return storage.MarkAllNotificationsRead(s.db, userID, s.now())
}

// Invalidate drops the cached list of one user
func (s *Service) Invalidate(userID string) {
	s.mu.Lock()
	s.gen[userID]++
	s.cache.Remove(userID)
	s.mu.Unlock()
}
