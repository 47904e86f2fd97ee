package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fazil2161/pingme/internal/application/notification"
	"github.com/fazil2161/pingme/internal/domain"
	"github.com/fazil2161/pingme/internal/pkg/id"
)

type Service interface {
	Create(ctx context.Context, authorID string, req domain.CreatePostRequest) (*domain.Post, error)
	Get(ctx context.Context, postID string) (*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int32, cursor string) ([]domain.Post, string, error)
	Delete(ctx context.Context, postID, userID string) error
	Like(ctx context.Context, postID, userID string) (*domain.Post, error)
	Unlike(ctx context.Context, postID, userID string) (*domain.Post, error)
	Comment(ctx context.Context, postID, authorID string, req domain.CreateCommentRequest) (*domain.Comment, error)
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
}

type postStore interface {
	Put(ctx context.Context, p *domain.Post) error
	Get(ctx context.Context, postID string) (*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int32, cursor string) ([]domain.Post, string, error)
	AddLike(ctx context.Context, postID, userID string) error
	RemoveLike(ctx context.Context, postID, userID string) error
	IncrementCommentCount(ctx context.Context, postID string) error
	SoftDelete(ctx context.Context, postID string) error
}

type commentStore interface {
	Put(ctx context.Context, c *domain.Comment) error
	Get(ctx context.Context, commentID string) (*domain.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]domain.Comment, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type followStore interface {
	ListFollowers(ctx context.Context, followeeID string) ([]string, error)
}

type ServiceDeps struct {
	PostRepo      postStore
	CommentRepo   commentStore
	UserRepo      userStore
	FollowRepo    followStore
	Notifications notification.Service
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	return &service{deps: deps}
}

func (s *service) Create(ctx context.Context, authorID string, req domain.CreatePostRequest) (*domain.Post, error) {
	author, err := s.deps.UserRepo.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.Post{
		PostID:    id.New(),
		AuthorID:  authorID,
		Text:      req.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.PostRepo.Put(ctx, p); err != nil {
		return nil, err
	}
	summary := author.Summary()
	p.Author = &summary

	// Fan the publish out to every follower. Dispatch handles dedup and
	// self-suppression; a failed dispatch never fails the post.
	followers, err := s.deps.FollowRepo.ListFollowers(ctx, authorID)
	if err != nil {
		slog.Warn("post publish: list followers failed", "author_id", authorID, "err", err)
		return p, nil
	}
	for _, followerID := range followers {
		if _, err := s.deps.Notifications.Dispatch(ctx, notification.DispatchInput{
			RecipientID:   followerID,
			SenderID:      authorID,
			Type:          domain.TypePostPublished,
			RelatedPostID: p.PostID,
		}); err != nil {
			slog.Warn("post publish: dispatch failed", "follower_id", followerID, "post_id", p.PostID, "err", err)
		}
	}
	return p, nil
}

func (s *service) Get(ctx context.Context, postID string) (*domain.Post, error) {
	p, err := s.deps.PostRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if author, err := s.deps.UserRepo.Get(ctx, p.AuthorID); err == nil {
		summary := author.Summary()
		p.Author = &summary
	}
	return p, nil
}

func (s *service) ListByAuthor(ctx context.Context, authorID string, limit int32, cursor string) ([]domain.Post, string, error) {
	if limit < 1 {
		limit = 20
	}
	return s.deps.PostRepo.ListByAuthor(ctx, authorID, limit, cursor)
}

func (s *service) Delete(ctx context.Context, postID, userID string) error {
	p, err := s.deps.PostRepo.Get(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != userID {
		return fmt.Errorf("not the author: %w", domain.ErrForbidden)
	}
	return s.deps.PostRepo.SoftDelete(ctx, postID)
}

func (s *service) Like(ctx context.Context, postID, userID string) (*domain.Post, error) {
	p, err := s.deps.PostRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.IsLikedBy(userID) {
		return p, nil
	}
	if err := s.deps.PostRepo.AddLike(ctx, postID, userID); err != nil {
		return nil, err
	}

	if _, err := s.deps.Notifications.Dispatch(ctx, notification.DispatchInput{
		RecipientID:   p.AuthorID,
		SenderID:      userID,
		Type:          domain.TypeLikePost,
		RelatedPostID: postID,
	}); err != nil {
		slog.Warn("like: notification dispatch failed", "post_id", postID, "err", err)
	}
	return s.deps.PostRepo.Get(ctx, postID)
}

func (s *service) Unlike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	p, err := s.deps.PostRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !p.IsLikedBy(userID) {
		return p, nil
	}
	if err := s.deps.PostRepo.RemoveLike(ctx, postID, userID); err != nil {
		return nil, err
	}
	return s.deps.PostRepo.Get(ctx, postID)
}

func (s *service) Comment(ctx context.Context, postID, authorID string, req domain.CreateCommentRequest) (*domain.Comment, error) {
	p, err := s.deps.PostRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	author, err := s.deps.UserRepo.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}

	var parent *domain.Comment
	if req.ParentID != "" {
		parent, err = s.deps.CommentRepo.Get(ctx, req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent comment: %w", err)
		}
		if parent.PostID != postID {
			return nil, fmt.Errorf("parent comment belongs to another post: %w", domain.ErrBadRequest)
		}
	}

	now := time.Now().UTC()
	c := &domain.Comment{
		CommentID: id.New(),
		PostID:    postID,
		AuthorID:  authorID,
		ParentID:  req.ParentID,
		Text:      req.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.CommentRepo.Put(ctx, c); err != nil {
		return nil, err
	}
	if err := s.deps.PostRepo.IncrementCommentCount(ctx, postID); err != nil {
		slog.Warn("comment: increment count failed", "post_id", postID, "err", err)
	}
	summary := author.Summary()
	c.Author = &summary

	if parent != nil {
		// Replies notify the parent comment's author, not the post's.
		if _, err := s.deps.Notifications.Dispatch(ctx, notification.DispatchInput{
			RecipientID:      parent.AuthorID,
			SenderID:         authorID,
			Type:             domain.TypeReplyComment,
			RelatedPostID:    postID,
			RelatedCommentID: c.CommentID,
		}); err != nil {
			slog.Warn("reply: notification dispatch failed", "comment_id", c.CommentID, "err", err)
		}
		return c, nil
	}

	if _, err := s.deps.Notifications.Dispatch(ctx, notification.DispatchInput{
		RecipientID:   p.AuthorID,
		SenderID:      authorID,
		Type:          domain.TypeCommentPost,
		RelatedPostID: postID,
	}); err != nil {
		slog.Warn("comment: notification dispatch failed", "post_id", postID, "err", err)
	}
	return c, nil
}

func (s *service) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	if _, err := s.deps.PostRepo.Get(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.deps.CommentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	authors := make(map[string]*domain.UserSummary)
	for i := range comments {
		aid := comments[i].AuthorID
		summary, ok := authors[aid]
		if !ok {
			if u, err := s.deps.UserRepo.Get(ctx, aid); err == nil {
				v := u.Summary()
				summary = &v
			}
			authors[aid] = summary
		}
		comments[i].Author = summary
	}
	return comments, nil
}
