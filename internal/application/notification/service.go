package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fazil2161/pingme/internal/domain"
	"github.com/fazil2161/pingme/internal/pkg/id"
	"github.com/fazil2161/pingme/internal/realtime"
)

// NotificationStore is the durable notification store the service requires.
type NotificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	// FindRecent returns a non-deleted notification matching the dedup tuple
	// created at or after since, or ErrNotFound.
	FindRecent(ctx context.Context, recipientID, senderID string, t domain.NotificationType, relatedPostID, relatedCommentID string, since time.Time) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int32, cursor string, unreadOnly bool) ([]domain.Notification, string, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	Update(ctx context.Context, notificationID string, updates map[string]interface{}) error
	ListReadBefore(ctx context.Context, cutoff time.Time, limit int32) ([]domain.Notification, error)
	HardDelete(ctx context.Context, notificationID string) error
}

// UserStore resolves sender identities for message rendering.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// PostStore resolves related posts so live payloads can carry a snippet.
type PostStore interface {
	Get(ctx context.Context, postID string) (*domain.Post, error)
}

// Pusher is the live-delivery side of the realtime hub.
type Pusher interface {
	IsOnline(userID string) bool
	PushNotification(userID string, payload realtime.NotificationPayload) bool
}

// OfflinePusher fans a notification out to an external push channel when the
// recipient has no live connection. Best-effort; failures are swallowed.
type OfflinePusher interface {
	Publish(ctx context.Context, userID, message string) error
}

// Mailer sends plain-text mail. Best-effort; failures are swallowed.
type Mailer interface {
	Send(to, subject, body string) error
}

// Archiver stores purged notifications before hard deletion.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// Outcome distinguishes the three terminal states of a dispatch: the action
// was suppressed, the record was persisted but not delivered live, or both.
type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"
	OutcomePersisted Outcome = "persisted"
	OutcomeDelivered Outcome = "delivered"
)

type DispatchInput struct {
	RecipientID      string
	SenderID         string
	Type             domain.NotificationType
	RelatedPostID    string
	RelatedCommentID string
	RelatedUserID    string
}

type DispatchResult struct {
	Outcome      Outcome
	Notification *domain.Notification
}

type Service interface {
	// Dispatch persists a notification and attempts best-effort live
	// delivery. Persistence errors surface to the caller; delivery failures
	// never do.
	Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error)
	List(ctx context.Context, recipientID string, limit int32, cursor string, unreadOnly bool) ([]domain.Notification, string, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error)
	MarkUnread(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) error
	Delete(ctx context.Context, notificationID, recipientID string) error
	// PurgeOld archives and removes read notifications older than the
	// retention threshold. Returns the number purged.
	PurgeOld(ctx context.Context) (int, error)
}

type ServiceDeps struct {
	Notifications NotificationStore
	Users         UserStore
	Posts         PostStore // optional
	Pusher        Pusher
	OfflinePush   OfflinePusher // optional
	Mailer        Mailer        // optional
	Archiver      Archiver      // optional
	DedupWindow   time.Duration
	Retention     time.Duration
}

type service struct {
	deps ServiceDeps
	now  func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.DedupWindow <= 0 {
		deps.DedupWindow = time.Minute
	}
	if deps.Retention <= 0 {
		deps.Retention = 30 * 24 * time.Hour
	}
	return &service{deps: deps, now: time.Now}
}

func (s *service) Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	// Self-actions never notify.
	if in.RecipientID == in.SenderID {
		return &DispatchResult{Outcome: OutcomeRejected}, nil
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("unknown notification type %q: %w", in.Type, domain.ErrBadRequest)
	}

	n := &domain.Notification{
		RecipientID:      in.RecipientID,
		SenderID:         in.SenderID,
		Type:             in.Type,
		RelatedPostID:    in.RelatedPostID,
		RelatedCommentID: in.RelatedCommentID,
		RelatedUserID:    in.RelatedUserID,
	}
	if err := n.ValidateRefs(); err != nil {
		return nil, err
	}

	// Suppress notification storms: an identical tuple inside the trailing
	// window reuses the existing record and triggers no second push.
	since := s.now().Add(-s.deps.DedupWindow)
	existing, err := s.deps.Notifications.FindRecent(ctx, in.RecipientID, in.SenderID, in.Type, in.RelatedPostID, in.RelatedCommentID, since)
	if err == nil {
		return &DispatchResult{Outcome: OutcomePersisted, Notification: existing}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	sender, err := s.deps.Users.Get(ctx, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	now := s.now().UTC()
	n.NotificationID = id.New()
	n.Message = in.Type.Message(sender.Username)
	n.IsRead = false
	n.CreatedAt = now
	n.UpdatedAt = now
	if err := s.deps.Notifications.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	senderSummary := sender.Summary()
	n.Sender = &senderSummary

	// Live delivery is best-effort. Reachability is re-checked here, not
	// captured earlier: a disconnect during the persistence round-trip
	// simply turns this into a skipped push.
	if s.deps.Pusher != nil && s.deps.Pusher.IsOnline(in.RecipientID) {
		delivered := s.deps.Pusher.PushNotification(in.RecipientID, realtime.NotificationPayload{
			Type:      n.Type,
			Message:   n.Message,
			Sender:    senderSummary,
			PostID:    n.RelatedPostID,
			CommentID: n.RelatedCommentID,
			Post:      s.relatedPostSummary(ctx, n.RelatedPostID),
			Timestamp: now,
		})
		if delivered {
			return &DispatchResult{Outcome: OutcomeDelivered, Notification: n}, nil
		}
	}

	s.notifyOffline(ctx, n)
	return &DispatchResult{Outcome: OutcomePersisted, Notification: n}, nil
}

// relatedPostSummary resolves a snippet of the related post for the live
// payload. Best-effort: a missing store or a failed lookup leaves the
// payload without one.
func (s *service) relatedPostSummary(ctx context.Context, postID string) *domain.PostSummary {
	if s.deps.Posts == nil || postID == "" {
		return nil
	}
	p, err := s.deps.Posts.Get(ctx, postID)
	if err != nil {
		return nil
	}
	summary := p.Summary()
	return &summary
}

// notifyOffline fans the notification out to the configured fallback
// channels. Every failure here is logged and swallowed.
func (s *service) notifyOffline(ctx context.Context, n *domain.Notification) {
	if s.deps.OfflinePush != nil {
		if err := s.deps.OfflinePush.Publish(ctx, n.RecipientID, n.Message); err != nil {
			slog.Warn("offline push failed", "recipient_id", n.RecipientID, "err", err)
		}
	}
	if s.deps.Mailer != nil {
		recipient, err := s.deps.Users.Get(ctx, n.RecipientID)
		if err != nil {
			slog.Warn("offline mail: resolve recipient failed", "recipient_id", n.RecipientID, "err", err)
			return
		}
		if err := s.deps.Mailer.Send(recipient.Email, "New activity on PingMe", n.Message); err != nil {
			slog.Warn("offline mail failed", "recipient_id", n.RecipientID, "err", err)
		}
	}
}

func (s *service) List(ctx context.Context, recipientID string, limit int32, cursor string, unreadOnly bool) ([]domain.Notification, string, error) {
	notifications, next, err := s.deps.Notifications.ListByRecipient(ctx, recipientID, limit, cursor, unreadOnly)
	if err != nil {
		return nil, "", err
	}
	// Denormalize sender summaries for the list view; one lookup per
	// distinct sender.
	senders := make(map[string]*domain.UserSummary)
	for i := range notifications {
		sid := notifications[i].SenderID
		summary, ok := senders[sid]
		if !ok {
			if u, err := s.deps.Users.Get(ctx, sid); err == nil {
				v := u.Summary()
				summary = &v
			}
			senders[sid] = summary
		}
		notifications[i].Sender = summary
	}
	return notifications, next, nil
}

func (s *service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return s.deps.Notifications.UnreadCount(ctx, recipientID)
}

func (s *service) MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	n, err := s.owned(ctx, notificationID, recipientID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	readAt := s.now().UTC()
	if err := s.deps.Notifications.Update(ctx, notificationID, map[string]interface{}{
		"is_read": true,
		"read_at": readAt,
	}); err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &readAt
	return n, nil
}

func (s *service) MarkUnread(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	n, err := s.owned(ctx, notificationID, recipientID)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		return n, nil
	}
	if err := s.deps.Notifications.Update(ctx, notificationID, map[string]interface{}{
		"is_read": false,
		"read_at": nil,
	}); err != nil {
		return nil, err
	}
	n.IsRead = false
	n.ReadAt = nil
	return n, nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID string) error {
	readAt := s.now().UTC()
	var cursor string
	for {
		unread, next, err := s.deps.Notifications.ListByRecipient(ctx, recipientID, 100, cursor, true)
		if err != nil {
			return err
		}
		for i := range unread {
			if err := s.deps.Notifications.Update(ctx, unread[i].NotificationID, map[string]interface{}{
				"is_read": true,
				"read_at": readAt,
			}); err != nil {
				slog.Warn("mark-all-read: update failed", "notification_id", unread[i].NotificationID, "err", err)
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (s *service) Delete(ctx context.Context, notificationID, recipientID string) error {
	if _, err := s.owned(ctx, notificationID, recipientID); err != nil {
		return err
	}
	return s.deps.Notifications.Update(ctx, notificationID, map[string]interface{}{
		"is_deleted": true,
	})
}

func (s *service) PurgeOld(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.deps.Retention)
	old, err := s.deps.Notifications.ListReadBefore(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}
	if len(old) == 0 {
		return 0, nil
	}
	if s.deps.Archiver != nil {
		body, err := json.Marshal(old)
		if err == nil {
			key := fmt.Sprintf("notifications/%s/%s.json", s.now().UTC().Format("2006-01-02"), id.New())
			if err := s.deps.Archiver.Archive(ctx, key, body); err != nil {
				// Do not delete what we failed to archive.
				return 0, fmt.Errorf("archive purged notifications: %w", err)
			}
		}
	}
	purged := 0
	for i := range old {
		if err := s.deps.Notifications.HardDelete(ctx, old[i].NotificationID); err != nil {
			slog.Warn("retention purge: delete failed", "notification_id", old[i].NotificationID, "err", err)
			continue
		}
		purged++
	}
	return purged, nil
}

// owned loads a notification and enforces recipient ownership. Soft-deleted
// records behave as missing.
func (s *service) owned(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	n, err := s.deps.Notifications.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.IsDeleted {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	if n.RecipientID != recipientID {
		return nil, fmt.Errorf("not the recipient: %w", domain.ErrForbidden)
	}
	return n, nil
}
