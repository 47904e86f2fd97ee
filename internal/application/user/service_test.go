package user

import (
	"context"
	"testing"

	"github.com/fazil2161/pingme/internal/application/notification"
	"github.com/fazil2161/pingme/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

func (m *mockUserStore) AdjustFollowCounts(ctx context.Context, userID string, followerDelta, followingDelta int) error {
	return m.Called(ctx, userID, followerDelta, followingDelta).Error(0)
}

func (m *mockUserStore) SoftDelete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockFollowStore struct{ mock.Mock }

func (m *mockFollowStore) Put(ctx context.Context, f *domain.Follow) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFollowStore) Delete(ctx context.Context, followerID, followeeID string) error {
	return m.Called(ctx, followerID, followeeID).Error(0)
}

func (m *mockFollowStore) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	args := m.Called(ctx, followerID, followeeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFollowStore) ListFollowers(ctx context.Context, followeeID string) ([]string, error) {
	args := m.Called(ctx, followeeID)
	var ids []string
	if v := args.Get(0); v != nil {
		ids = v.([]string)
	}
	return ids, args.Error(1)
}

func (m *mockFollowStore) ListFollowing(ctx context.Context, followerID string) ([]string, error) {
	args := m.Called(ctx, followerID)
	var ids []string
	if v := args.Get(0); v != nil {
		ids = v.([]string)
	}
	return ids, args.Error(1)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) DisableByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) Dispatch(ctx context.Context, in notification.DispatchInput) (*notification.DispatchResult, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*notification.DispatchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) List(ctx context.Context, recipientID string, limit int32, cursor string, unreadOnly bool) ([]domain.Notification, string, error) {
	args := m.Called(ctx, recipientID, limit, cursor, unreadOnly)
	return nil, args.String(1), args.Error(2)
}

func (m *mockNotificationSvc) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationSvc) MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID, recipientID)
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) MarkUnread(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID, recipientID)
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) MarkAllRead(ctx context.Context, recipientID string) error {
	return m.Called(ctx, recipientID).Error(0)
}

func (m *mockNotificationSvc) Delete(ctx context.Context, notificationID, recipientID string) error {
	return m.Called(ctx, notificationID, recipientID).Error(0)
}

func (m *mockNotificationSvc) PurgeOld(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newDeps() (ServiceDeps, *mockUserStore, *mockFollowStore, *mockSessionStore, *mockNotificationSvc) {
	users := new(mockUserStore)
	follows := new(mockFollowStore)
	sessions := new(mockSessionStore)
	notifs := new(mockNotificationSvc)
	return ServiceDeps{
		UserRepo:      users,
		FollowRepo:    follows,
		SessionRepo:   sessions,
		Notifications: notifs,
	}, users, follows, sessions, notifs
}

func TestFollow_CreatesEdgeAndNotifies(t *testing.T) {
	deps, users, follows, _, notifs := newDeps()
	svc := NewService(deps)

	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Username: "alice"}, nil)
	follows.On("Exists", mock.Anything, "u2", "u1").Return(false, nil)
	follows.On("Put", mock.Anything, mock.MatchedBy(func(f *domain.Follow) bool {
		return f.FollowerID == "u2" && f.FolloweeID == "u1"
	})).Return(nil)
	users.On("AdjustFollowCounts", mock.Anything, "u1", 1, 0).Return(nil)
	users.On("AdjustFollowCounts", mock.Anything, "u2", 0, 1).Return(nil)
	notifs.On("Dispatch", mock.Anything, notification.DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeFollow,
	}).Return(&notification.DispatchResult{Outcome: notification.OutcomeDelivered}, nil)

	require.NoError(t, svc.Follow(context.Background(), "u2", "u1"))
	follows.AssertExpectations(t)
	notifs.AssertExpectations(t)
}

func TestFollow_SelfFollowRejected(t *testing.T) {
	deps, _, follows, _, _ := newDeps()
	svc := NewService(deps)

	err := svc.Follow(context.Background(), "u1", "u1")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	follows.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestFollow_AlreadyFollowingConflict(t *testing.T) {
	deps, users, follows, _, notifs := newDeps()
	svc := NewService(deps)

	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	follows.On("Exists", mock.Anything, "u2", "u1").Return(true, nil)

	err := svc.Follow(context.Background(), "u2", "u1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	notifs.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestFollow_UnknownFollowee(t *testing.T) {
	deps, users, _, _, _ := newDeps()
	svc := NewService(deps)

	users.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	err := svc.Follow(context.Background(), "u2", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnfollow_RemovesEdgeAndNotifies(t *testing.T) {
	deps, users, follows, _, notifs := newDeps()
	svc := NewService(deps)

	follows.On("Exists", mock.Anything, "u2", "u1").Return(true, nil)
	follows.On("Delete", mock.Anything, "u2", "u1").Return(nil)
	users.On("AdjustFollowCounts", mock.Anything, "u1", -1, 0).Return(nil)
	users.On("AdjustFollowCounts", mock.Anything, "u2", 0, -1).Return(nil)
	notifs.On("Dispatch", mock.Anything, notification.DispatchInput{
		RecipientID: "u1", SenderID: "u2", Type: domain.TypeUnfollow,
	}).Return(&notification.DispatchResult{Outcome: notification.OutcomePersisted}, nil)

	require.NoError(t, svc.Unfollow(context.Background(), "u2", "u1"))
	notifs.AssertExpectations(t)
}

func TestUnfollow_NotFollowing(t *testing.T) {
	deps, _, follows, _, _ := newDeps()
	svc := NewService(deps)

	follows.On("Exists", mock.Anything, "u2", "u1").Return(false, nil)

	err := svc.Unfollow(context.Background(), "u2", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	follows.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_UsernameConflict(t *testing.T) {
	deps, users, _, _, _ := newDeps()
	svc := NewService(deps)

	taken := "bob"
	users.On("GetByUsername", mock.Anything, "bob").
		Return(&domain.User{UserID: "someone-else", Username: "bob"}, nil)

	_, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Username: &taken})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_NoFieldsReturnsCurrent(t *testing.T) {
	deps, users, _, _, _ := newDeps()
	svc := NewService(deps)

	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Username: "alice"}, nil)

	u, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete_DisablesSessions(t *testing.T) {
	deps, users, _, sessions, _ := newDeps()
	svc := NewService(deps)

	users.On("SoftDelete", mock.Anything, "u1").Return(nil)
	sessions.On("DisableByUser", mock.Anything, "u1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "u1"))
	sessions.AssertExpectations(t)
}

func TestFollowers_ResolvesSummaries(t *testing.T) {
	deps, users, follows, _, _ := newDeps()
	svc := NewService(deps)

	follows.On("ListFollowers", mock.Anything, "u1").Return([]string{"u2", "u3"}, nil)
	users.On("Get", mock.Anything, "u2").Return(&domain.User{UserID: "u2", Username: "bob"}, nil)
	users.On("Get", mock.Anything, "u3").Return(nil, domain.ErrNotFound)

	followers, err := svc.Followers(context.Background(), "u1")
	require.NoError(t, err)
	// Unresolvable users are skipped, not fatal.
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Username)
}
