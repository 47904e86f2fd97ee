package notification

import (
	"context"
	"testing"
	"time"

	"github.com/fazil2161/pingme/internal/domain"
	"github.com/fazil2161/pingme/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationStore) Get(ctx context.Context, id string) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if n := args.Get(0); n != nil {
		return n.(*domain.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationStore) FindRecent(ctx context.Context, recipientID, senderID string, t domain.NotificationType, relatedPostID, relatedCommentID string, since time.Time) (*domain.Notification, error) {
	args := m.Called(ctx, recipientID, senderID, t, relatedPostID, relatedCommentID, since)
	if n := args.Get(0); n != nil {
		return n.(*domain.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationStore) ListByRecipient(ctx context.Context, recipientID string, limit int32, cursor string, unreadOnly bool) ([]domain.Notification, string, error) {
	args := m.Called(ctx, recipientID, limit, cursor, unreadOnly)
	var ns []domain.Notification
	if v := args.Get(0); v != nil {
		ns = v.([]domain.Notification)
	}
	return ns, args.String(1), args.Error(2)
}

func (m *mockNotificationStore) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationStore) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return m.Called(ctx, id, updates).Error(0)
}

func (m *mockNotificationStore) ListReadBefore(ctx context.Context, cutoff time.Time, limit int32) ([]domain.Notification, error) {
	args := m.Called(ctx, cutoff, limit)
	var ns []domain.Notification
	if v := args.Get(0); v != nil {
		ns = v.([]domain.Notification)
	}
	return ns, args.Error(1)
}

func (m *mockNotificationStore) HardDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPostStore struct{ mock.Mock }

func (m *mockPostStore) Get(ctx context.Context, postID string) (*domain.Post, error) {
	args := m.Called(ctx, postID)
	if p := args.Get(0); p != nil {
		return p.(*domain.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPusher struct{ mock.Mock }

func (m *mockPusher) IsOnline(userID string) bool { return m.Called(userID).Bool(0) }

func (m *mockPusher) PushNotification(userID string, payload realtime.NotificationPayload) bool {
	return m.Called(userID, payload).Bool(0)
}

type mockOfflinePusher struct{ mock.Mock }

func (m *mockOfflinePusher) Publish(ctx context.Context, userID, message string) error {
	return m.Called(ctx, userID, message).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockArchiver struct{ mock.Mock }

func (m *mockArchiver) Archive(ctx context.Context, key string, body []byte) error {
	return m.Called(ctx, key, body).Error(0)
}

func newTestService(store *mockNotificationStore, users *mockUserStore, pusher *mockPusher) Service {
	return NewService(ServiceDeps{
		Notifications: store,
		Users:         users,
		Pusher:        pusher,
		DedupWindow:   time.Minute,
		Retention:     30 * 24 * time.Hour,
	})
}

func sender() *domain.User {
	return &domain.User{UserID: "u2", Username: "bob", Enable: true}
}

func TestDispatch_SelfActionRejected(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	pusher := new(mockPusher)
	svc := newTestService(store, users, pusher)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u1", Type: domain.TypeLikePost, RelatedPostID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestDispatch_UnknownTypeRejected(t *testing.T) {
	svc := newTestService(new(mockNotificationStore), new(mockUserStore), new(mockPusher))

	_, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: "poke",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestDispatch_MissingRelatedPostRejected(t *testing.T) {
	svc := newTestService(new(mockNotificationStore), new(mockUserStore), new(mockPusher))

	_, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestDispatch_DedupReusesRecentRecord(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	pusher := new(mockPusher)
	svc := newTestService(store, users, pusher)

	existing := &domain.Notification{NotificationID: "n1", RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost}
	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeLikePost, "p1", "", mock.Anything).
		Return(existing, nil)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost, RelatedPostID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, res.Outcome)
	assert.Equal(t, "n1", res.Notification.NotificationID)

	// A deduplicated dispatch persists nothing new and pushes nothing.
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	pusher.AssertNotCalled(t, "PushNotification", mock.Anything, mock.Anything)
}

func TestDispatch_OnlineRecipientDelivered(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	pusher := new(mockPusher)
	svc := newTestService(store, users, pusher)

	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeLikePost, "p1", "", mock.Anything).
		Return(nil, domain.ErrNotFound)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	pusher.On("IsOnline", "u1").Return(true)
	pusher.On("PushNotification", "u1", mock.Anything).Return(true)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost, RelatedPostID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, "bob liked your post", res.Notification.Message)
	assert.NotEmpty(t, res.Notification.NotificationID)

	// Persistence always precedes delivery.
	store.AssertCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestDispatch_PayloadEmbedsRelatedPostSnippet(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	posts := new(mockPostStore)
	pusher := new(mockPusher)
	svc := NewService(ServiceDeps{
		Notifications: store,
		Users:         users,
		Posts:         posts,
		Pusher:        pusher,
		DedupWindow:   time.Minute,
	})

	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeLikePost, "p1", "", mock.Anything).
		Return(nil, domain.ErrNotFound)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil)
	posts.On("Get", mock.Anything, "p1").Return(&domain.Post{PostID: "p1", Text: "hello world"}, nil)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	pusher.On("IsOnline", "u1").Return(true)
	pusher.On("PushNotification", "u1", mock.MatchedBy(func(p realtime.NotificationPayload) bool {
		return p.Post != nil && p.Post.PostID == "p1" && p.Post.Text == "hello world"
	})).Return(true)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost, RelatedPostID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	pusher.AssertExpectations(t)
}

func TestDispatch_PostLookupFailureStillDelivers(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	posts := new(mockPostStore)
	pusher := new(mockPusher)
	svc := NewService(ServiceDeps{
		Notifications: store,
		Users:         users,
		Posts:         posts,
		Pusher:        pusher,
		DedupWindow:   time.Minute,
	})

	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeLikePost, "p1", "", mock.Anything).
		Return(nil, domain.ErrNotFound)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil)
	posts.On("Get", mock.Anything, "p1").Return(nil, assert.AnError)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	pusher.On("IsOnline", "u1").Return(true)
	pusher.On("PushNotification", "u1", mock.MatchedBy(func(p realtime.NotificationPayload) bool {
		return p.Post == nil && p.PostID == "p1"
	})).Return(true)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost, RelatedPostID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestDispatch_OfflineRecipientPersistedWithFallbacks(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	pusher := new(mockPusher)
	offline := new(mockOfflinePusher)
	mailer := new(mockMailer)

	svc := NewService(ServiceDeps{
		Notifications: store,
		Users:         users,
		Pusher:        pusher,
		OfflinePush:   offline,
		Mailer:        mailer,
		DedupWindow:   time.Minute,
	})

	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeFollow, "", "", mock.Anything).
		Return(nil, domain.ErrNotFound)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil)
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "alice@example.com"}, nil)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	pusher.On("IsOnline", "u1").Return(false)
	offline.On("Publish", mock.Anything, "u1", "bob started following you").Return(nil)
	mailer.On("Send", "alice@example.com", mock.Anything, "bob started following you").Return(nil)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeFollow,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, res.Outcome)
	// Follow notifications default the related user to the sender.
	assert.Equal(t, "u2", res.Notification.RelatedUserID)

	pusher.AssertNotCalled(t, "PushNotification", mock.Anything, mock.Anything)
	offline.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestDispatch_PushRefusedFallsBackToPersisted(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	pusher := new(mockPusher)
	svc := newTestService(store, users, pusher)

	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeCommentPost, "p1", "", mock.Anything).
		Return(nil, domain.ErrNotFound)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	// Online at check time, but the send buffer refuses the event.
	pusher.On("IsOnline", "u1").Return(true)
	pusher.On("PushNotification", "u1", mock.Anything).Return(false)

	res, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeCommentPost, RelatedPostID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, res.Outcome)
}

func TestDispatch_PersistErrorSurfaces(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	pusher := new(mockPusher)
	svc := newTestService(store, users, pusher)

	store.On("FindRecent", mock.Anything, "u1", "u2", domain.TypeLikePost, "p1", "", mock.Anything).
		Return(nil, domain.ErrNotFound)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil)
	store.On("Put", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := svc.Dispatch(context.Background(), DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeLikePost, RelatedPostID: "p1",
	})
	require.Error(t, err)
	pusher.AssertNotCalled(t, "PushNotification", mock.Anything, mock.Anything)
}

func TestMarkRead_SetsReadStateOnce(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	store.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1"}, nil)
	store.On("Update", mock.Anything, "n1", mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["is_read"] == true && u["read_at"] != nil
	})).Return(nil)

	n, err := svc.MarkRead(context.Background(), "n1", "u1")
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
}

func TestMarkRead_AlreadyReadIsIdempotent(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	readAt := time.Now().UTC()
	store.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1", IsRead: true, ReadAt: &readAt}, nil)

	n, err := svc.MarkRead(context.Background(), "n1", "u1")
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead_WrongRecipientForbidden(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	store.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1"}, nil)

	_, err := svc.MarkRead(context.Background(), "n1", "intruder")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestMarkRead_SoftDeletedBehavesAsMissing(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	store.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1", IsDeleted: true}, nil)

	_, err := svc.MarkRead(context.Background(), "n1", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkUnread_ClearsReadState(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	readAt := time.Now().UTC()
	store.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1", IsRead: true, ReadAt: &readAt}, nil)
	store.On("Update", mock.Anything, "n1", mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["is_read"] == false
	})).Return(nil)

	n, err := svc.MarkUnread(context.Background(), "n1", "u1")
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.Nil(t, n.ReadAt)
}

func TestDelete_SoftDeletes(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	store.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1"}, nil)
	store.On("Update", mock.Anything, "n1", map[string]interface{}{"is_deleted": true}).Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "n1", "u1"))
	store.AssertExpectations(t)
}

func TestList_PopulatesSenderSummaries(t *testing.T) {
	store := new(mockNotificationStore)
	users := new(mockUserStore)
	svc := newTestService(store, users, new(mockPusher))

	store.On("ListByRecipient", mock.Anything, "u1", int32(20), "", false).
		Return([]domain.Notification{
			{NotificationID: "n1", SenderID: "u2"},
			{NotificationID: "n2", SenderID: "u2"},
		}, "", nil)
	users.On("Get", mock.Anything, "u2").Return(sender(), nil).Once()

	notifications, _, err := svc.List(context.Background(), "u1", 20, "", false)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	require.NotNil(t, notifications[0].Sender)
	assert.Equal(t, "bob", notifications[0].Sender.Username)
	// One lookup per distinct sender.
	users.AssertNumberOfCalls(t, "Get", 1)
}

func TestPurgeOld_ArchiveFailureAbortsDeletion(t *testing.T) {
	store := new(mockNotificationStore)
	archiver := new(mockArchiver)
	svc := NewService(ServiceDeps{
		Notifications: store,
		Users:         new(mockUserStore),
		Archiver:      archiver,
		Retention:     30 * 24 * time.Hour,
	})

	store.On("ListReadBefore", mock.Anything, mock.Anything, int32(500)).
		Return([]domain.Notification{{NotificationID: "n1"}}, nil)
	archiver.On("Archive", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := svc.PurgeOld(context.Background())
	require.Error(t, err)
	store.AssertNotCalled(t, "HardDelete", mock.Anything, mock.Anything)
}

func TestPurgeOld_ArchivesThenDeletes(t *testing.T) {
	store := new(mockNotificationStore)
	archiver := new(mockArchiver)
	svc := NewService(ServiceDeps{
		Notifications: store,
		Users:         new(mockUserStore),
		Archiver:      archiver,
		Retention:     30 * 24 * time.Hour,
	})

	store.On("ListReadBefore", mock.Anything, mock.Anything, int32(500)).
		Return([]domain.Notification{{NotificationID: "n1"}, {NotificationID: "n2"}}, nil)
	archiver.On("Archive", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("HardDelete", mock.Anything, "n1").Return(nil)
	store.On("HardDelete", mock.Anything, "n2").Return(nil)

	purged, err := svc.PurgeOld(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	store.AssertExpectations(t)
}

func TestPurgeOld_NothingToPurge(t *testing.T) {
	store := new(mockNotificationStore)
	svc := newTestService(store, new(mockUserStore), new(mockPusher))

	store.On("ListReadBefore", mock.Anything, mock.Anything, int32(500)).
		Return([]domain.Notification{}, nil)

	purged, err := svc.PurgeOld(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
	store.AssertNotCalled(t, "HardDelete", mock.Anything, mock.Anything)
}
