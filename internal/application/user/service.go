package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fazil2161/pingme/internal/application/notification"
	"github.com/fazil2161/pingme/internal/domain"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldUsername       = "username"
	fieldEmail          = "email"
	fieldBio            = "bio"
	fieldProfilePicture = "profile_picture"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	Followers(ctx context.Context, userID string) ([]domain.UserSummary, error)
	Following(ctx context.Context, userID string) ([]domain.UserSummary, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	AdjustFollowCounts(ctx context.Context, userID string, followerDelta, followingDelta int) error
	SoftDelete(ctx context.Context, userID string) error
}

type followStore interface {
	Put(ctx context.Context, f *domain.Follow) error
	Delete(ctx context.Context, followerID, followeeID string) error
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowers(ctx context.Context, followeeID string) ([]string, error)
	ListFollowing(ctx context.Context, followerID string) ([]string, error)
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type ServiceDeps struct {
	UserRepo      userStore
	FollowRepo    followStore
	SessionRepo   sessionStore
	Notifications notification.Service
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	return &service{deps: deps}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.deps.UserRepo.Get(ctx, userID)
}

func (s *service) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.deps.UserRepo.GetByUsername(ctx, username)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Username != nil {
		if existing, err := s.deps.UserRepo.GetByUsername(ctx, *req.Username); err == nil && existing.UserID != userID {
			return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
		}
		updates[fieldUsername] = *req.Username
	}
	if req.Email != nil {
		if existing, err := s.deps.UserRepo.GetByEmail(ctx, *req.Email); err == nil && existing.UserID != userID {
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		updates[fieldEmail] = *req.Email
	}
	if req.Bio != nil {
		updates[fieldBio] = *req.Bio
	}
	if req.ProfilePicture != nil {
		updates[fieldProfilePicture] = *req.ProfilePicture
	}
	if len(updates) == 0 {
		return s.deps.UserRepo.Get(ctx, userID)
	}
	if err := s.deps.UserRepo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.deps.UserRepo.Get(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.deps.UserRepo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.deps.SessionRepo.DisableByUser(ctx, userID)
}

func (s *service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return fmt.Errorf("cannot follow yourself: %w", domain.ErrBadRequest)
	}
	if _, err := s.deps.UserRepo.Get(ctx, followeeID); err != nil {
		return err
	}
	exists, err := s.deps.FollowRepo.Exists(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("already following: %w", domain.ErrConflict)
	}
	if err := s.deps.FollowRepo.Put(ctx, &domain.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := s.deps.UserRepo.AdjustFollowCounts(ctx, followeeID, 1, 0); err != nil {
		slog.Warn("follow: adjust followee counts failed", "user_id", followeeID, "err", err)
	}
	if err := s.deps.UserRepo.AdjustFollowCounts(ctx, followerID, 0, 1); err != nil {
		slog.Warn("follow: adjust follower counts failed", "user_id", followerID, "err", err)
	}

	if _, err := s.deps.Notifications.Dispatch(ctx, notification.DispatchInput{
		RecipientID: followeeID,
		SenderID:    followerID,
		Type:        domain.TypeFollow,
	}); err != nil {
		slog.Warn("follow: notification dispatch failed", "followee_id", followeeID, "err", err)
	}
	return nil
}

func (s *service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	exists, err := s.deps.FollowRepo.Exists(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("not following: %w", domain.ErrNotFound)
	}
	if err := s.deps.FollowRepo.Delete(ctx, followerID, followeeID); err != nil {
		return err
	}
	if err := s.deps.UserRepo.AdjustFollowCounts(ctx, followeeID, -1, 0); err != nil {
		slog.Warn("unfollow: adjust followee counts failed", "user_id", followeeID, "err", err)
	}
	if err := s.deps.UserRepo.AdjustFollowCounts(ctx, followerID, 0, -1); err != nil {
		slog.Warn("unfollow: adjust follower counts failed", "user_id", followerID, "err", err)
	}

	if _, err := s.deps.Notifications.Dispatch(ctx, notification.DispatchInput{
		RecipientID: followeeID,
		SenderID:    followerID,
		Type:        domain.TypeUnfollow,
	}); err != nil {
		slog.Warn("unfollow: notification dispatch failed", "followee_id", followeeID, "err", err)
	}
	return nil
}

func (s *service) Followers(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	ids, err := s.deps.FollowRepo.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, ids), nil
}

func (s *service) Following(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	ids, err := s.deps.FollowRepo.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, ids), nil
}

func (s *service) summaries(ctx context.Context, ids []string) []domain.UserSummary {
	out := make([]domain.UserSummary, 0, len(ids))
	for _, uid := range ids {
		u, err := s.deps.UserRepo.Get(ctx, uid)
		if err != nil {
			slog.Warn("resolve user summary failed", "user_id", uid, "err", err)
			continue
		}
		out = append(out, u.Summary())
	}
	return out
}
