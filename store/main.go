// Package store maintains the client-side source of truth for a user's
// notification list: paginated read-through from the backend, read/unread
// bookkeeping, and local inserts for notifications delivered over the push
// channel. Screens read the store's state; they never talk to the transport
// directly.
package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/adminhub/notification-client/api"
	"github.com/adminhub/notification-client/bus"
	"github.com/adminhub/notification-client/model"
)

var log = logrus.WithField("package", "store")

// DefaultPageSize is the page size used when the caller doesn't specify one.
const DefaultPageSize = 20

// Backend describes the notification API operations the store depends on. The
// api package provides the production implementation.
type Backend interface {
	GetNotifications(ctx context.Context, userID string, page, size int) (*api.Page, error)
	GetStats(ctx context.Context, userID string) (*model.Stats, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (*api.BulkResult, error)
	Delete(ctx context.Context, id string) error
}

// Store is the in-memory notification cache for a single user session. All
// operations serialize on the store's mutex; a mutation racing a page refresh
// is last-write-wins on the list snapshot.
type Store struct {
	backend  Backend
	eventBus *bus.Bus

	// lifetime is cancelled on Dispose so in-flight fetches can't mutate
	// state after the store is torn down.
	lifetime    context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu            sync.Mutex
	disposed      bool
	notifications []model.Notification
	unreadCount   int
	totalElements int
	totalPages    int
	stats         *model.Stats
	loading       bool
	lastErr       error
}

// New creates a notification store backed by the given API client and
// subscribes it to the event bus for push deliveries.
func New(backend Backend, eventBus *bus.Bus) *Store {
	lifetime, cancel := context.WithCancel(context.Background())
	store := &Store{
		backend:  backend,
		eventBus: eventBus,
		lifetime: lifetime,
		cancel:   cancel,
	}
	store.unsubscribe = eventBus.Subscribe(bus.ChannelNewNotification, store.handleDelivery)
	return store
}

// Dispose tears the store down: it unsubscribes from the event bus and aborts
// any in-flight fetches. Operations invoked afterward leave the store's state
// untouched. Safe to call more than once.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.cancel()
	s.unsubscribe()
}

// handleDelivery is the event bus subscriber for push deliveries.
func (s *Store) handleDelivery(payload interface{}) {
	notification, ok := payload.(*model.Notification)
	if !ok {
		log.Warnf("ignoring unexpected payload type %T on channel %s", payload, bus.ChannelNewNotification)
		return
	}
	s.AddNotification(*notification)
}

// requestContext derives a context for a backend call that is cancelled when
// either the caller's context or the store's lifetime ends.
func (s *Store) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.lifetime, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

// LoadNotifications fetches one page of the user's notifications and replaces
// the in-memory list with the page's content, recomputing the unread count
// from it. Each call is a fresh snapshot for that page, not an append. On
// failure the previous state is kept and the error is surfaced through Err
// rather than returned, so a failed refresh can never take a render path down.
func (s *Store) LoadNotifications(ctx context.Context, userID string, page, size int) {
	if size <= 0 {
		size = DefaultPageSize
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.mu.Unlock()

	reqCtx, done := s.requestContext(ctx)
	defer done()
	fetched, err := s.backend.GetNotifications(reqCtx, userID, page, size)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.disposed {
		return
	}
	if err != nil {
		log.Warnf("unable to refresh notifications for user %s: %s", userID, err)
		s.lastErr = err
		return
	}

	s.lastErr = nil
	s.notifications = append([]model.Notification(nil), fetched.Content...)
	s.totalElements = fetched.TotalElements
	s.totalPages = fetched.TotalPages
	s.unreadCount = countUnread(fetched.Content)
}

// LoadStats fetches the user's aggregate notification counts. On success the
// server-reported unread count overwrites the locally derived one; the server
// is authoritative. Failures follow the same swallow-and-flag policy as
// LoadNotifications.
func (s *Store) LoadStats(ctx context.Context, userID string) {
	reqCtx, done := s.requestContext(ctx)
	defer done()
	stats, err := s.backend.GetStats(reqCtx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if err != nil {
		log.Warnf("unable to refresh notification stats for user %s: %s", userID, err)
		s.lastErr = err
		return
	}

	s.lastErr = nil
	s.stats = stats
	s.unreadCount = stats.Unread
}

// MarkAsRead marks a single notification as read, flipping the local entry
// only after the backend confirms the mutation. The operation is idempotent
// and a no-op for IDs that aren't in the local list. Failures are returned to
// the caller, whose decision it is to retry or alert.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	wrapMsg := "unable to mark the notification as read"

	reqCtx, done := s.requestContext(ctx)
	defer done()
	err := s.backend.MarkRead(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			if !s.notifications[i].Read {
				s.notifications[i].Read = true
				s.decrementUnread()
			}
			break
		}
	}
	return nil
}

// MarkAllAsRead marks all of the user's notifications as read. Local state is
// only mutated on an explicit success acknowledgment from the backend; a
// partial-failure response would otherwise desync the local view from the
// server.
func (s *Store) MarkAllAsRead(ctx context.Context, userID string) error {
	wrapMsg := "unable to mark all notifications as read"

	reqCtx, done := s.requestContext(ctx)
	defer done()
	result, err := s.backend.MarkAllRead(reqCtx, userID)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if !result.Success {
		return errors.Errorf("%s: the backend declined the request: %s", wrapMsg, result.Message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.unreadCount = 0
	return nil
}

// DeleteNotification deletes a single notification, removing the local entry
// after the backend confirms. The unread count is decremented only if the
// removed entry was unread.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	wrapMsg := "unable to delete the notification"

	reqCtx, done := s.requestContext(ctx)
	defer done()
	err := s.backend.Delete(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			if !s.notifications[i].Read {
				s.decrementUnread()
			}
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			break
		}
	}
	return nil
}

// AddNotification inserts a notification delivered over the push channel at
// the head of the list (newest first) and bumps the unread count when the
// notification is unread. It never calls the backend. Deliveries are
// at-least-once, so an ID that is already present is ignored to keep IDs
// unique within the store.
func (s *Store) AddNotification(notification model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	for i := range s.notifications {
		if s.notifications[i].ID == notification.ID {
			return
		}
	}
	s.notifications = append([]model.Notification{notification}, s.notifications...)
	if !notification.Read {
		s.unreadCount++
	}
}

// Notifications returns a copy of the current notification list, newest first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notifications...)
}

// UnreadCount returns the number of unread notifications in the current view.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadCount
}

// TotalElements returns the total element count reported by the last
// successful page load.
func (s *Store) TotalElements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalElements
}

// TotalPages returns the total page count reported by the last successful page
// load.
func (s *Store) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPages
}

// Stats returns the aggregate counts from the last successful stats load, or
// nil if none has completed yet.
func (s *Store) Stats() *model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// IsLoading reports whether a page load is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the error from the most recent failed read operation, or nil if
// the most recent read succeeded.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// decrementUnread lowers the unread count, flooring it at zero. The caller
// must hold the store mutex.
func (s *Store) decrementUnread() {
	if s.unreadCount > 0 {
		s.unreadCount--
	}
}

// countUnread counts the entries in a page that haven't been read.
func countUnread(notifications []model.Notification) int {
	count := 0
	for i := range notifications {
		if !notifications[i].Read {
			count++
		}
	}
	return count
}
