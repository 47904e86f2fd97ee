package domain

import (
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds. Adding a type
// means extending Valid, Message and RelatedRefRule below; all three switch
// over every member so a missed case is caught by tests.
type NotificationType string

const (
	TypeLikePost       NotificationType = "like_post"
	TypeLikeComment    NotificationType = "like_comment"
	TypeCommentPost    NotificationType = "comment_post"
	TypeReplyComment   NotificationType = "reply_comment"
	TypeFollow         NotificationType = "follow"
	TypeUnfollow       NotificationType = "unfollow"
	TypeMentionPost    NotificationType = "mention_post"
	TypeMentionComment NotificationType = "mention_comment"
	TypeRetweet        NotificationType = "retweet"
	TypePostPublished  NotificationType = "post_published"
)

// NotificationTypes lists every member of the closed set, in declaration order.
var NotificationTypes = []NotificationType{
	TypeLikePost, TypeLikeComment, TypeCommentPost, TypeReplyComment,
	TypeFollow, TypeUnfollow, TypeMentionPost, TypeMentionComment,
	TypeRetweet, TypePostPublished,
}

func (t NotificationType) Valid() bool {
	switch t {
	case TypeLikePost, TypeLikeComment, TypeCommentPost, TypeReplyComment,
		TypeFollow, TypeUnfollow, TypeMentionPost, TypeMentionComment,
		TypeRetweet, TypePostPublished:
		return true
	}
	return false
}

// Message renders the denormalized human-readable text for a notification.
// The sender's name is captured at creation time and never updated if the
// sender later renames.
func (t NotificationType) Message(senderName string) string {
	switch t {
	case TypeLikePost:
		return fmt.Sprintf("%s liked your post", senderName)
	case TypeLikeComment:
		return fmt.Sprintf("%s liked your comment", senderName)
	case TypeCommentPost:
		return fmt.Sprintf("%s commented on your post", senderName)
	case TypeReplyComment:
		return fmt.Sprintf("%s replied to your comment", senderName)
	case TypeFollow:
		return fmt.Sprintf("%s started following you", senderName)
	case TypeUnfollow:
		return fmt.Sprintf("%s unfollowed you", senderName)
	case TypeMentionPost:
		return fmt.Sprintf("%s mentioned you in a post", senderName)
	case TypeMentionComment:
		return fmt.Sprintf("%s mentioned you in a comment", senderName)
	case TypeRetweet:
		return fmt.Sprintf("%s retweeted your post", senderName)
	case TypePostPublished:
		return fmt.Sprintf("%s published a new post", senderName)
	}
	return fmt.Sprintf("%s interacted with your content", senderName)
}

// RelatedRefRule classifies which related reference a type requires.
type RelatedRefRule int

const (
	// RefNone: no related reference is mandatory.
	RefNone RelatedRefRule = iota
	// RefPost: RelatedPostID must be set.
	RefPost
	// RefComment: RelatedCommentID must be set.
	RefComment
	// RefUser: RelatedUserID defaults to the sender when unset.
	RefUser
)

func (t NotificationType) RelatedRefRule() RelatedRefRule {
	switch t {
	case TypeLikePost, TypeCommentPost, TypeMentionPost, TypeRetweet, TypePostPublished:
		return RefPost
	case TypeLikeComment, TypeReplyComment, TypeMentionComment:
		return RefComment
	case TypeFollow, TypeUnfollow:
		return RefUser
	}
	return RefNone
}

type Notification struct {
	NotificationID   string           `json:"id" dynamodbav:"notification_id"`
	RecipientID      string           `json:"recipient_id" dynamodbav:"recipient_id"`
	SenderID         string           `json:"sender_id" dynamodbav:"sender_id"`
	Type             NotificationType `json:"type" dynamodbav:"type"`
	Message          string           `json:"message" dynamodbav:"message"`
	RelatedPostID    string           `json:"related_post_id,omitempty" dynamodbav:"related_post_id"`
	RelatedCommentID string           `json:"related_comment_id,omitempty" dynamodbav:"related_comment_id"`
	RelatedUserID    string           `json:"related_user_id,omitempty" dynamodbav:"related_user_id"`
	IsRead           bool             `json:"is_read" dynamodbav:"is_read"`
	ReadAt           *time.Time       `json:"read_at,omitempty" dynamodbav:"read_at"`
	IsDeleted        bool             `json:"-" dynamodbav:"is_deleted"`
	Sender           *UserSummary     `json:"sender,omitempty" dynamodbav:"-"`
	CreatedAt        time.Time        `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time        `json:"updated" dynamodbav:"updated_at"`
}

// ValidateRefs checks the related-reference invariant for the notification's
// type and applies the follow/unfollow default (related user = sender).
func (n *Notification) ValidateRefs() error {
	switch n.Type.RelatedRefRule() {
	case RefPost:
		if n.RelatedPostID == "" {
			return fmt.Errorf("notification type %s requires a related post: %w", n.Type, ErrBadRequest)
		}
	case RefComment:
		if n.RelatedCommentID == "" {
			return fmt.Errorf("notification type %s requires a related comment: %w", n.Type, ErrBadRequest)
		}
	case RefUser:
		if n.RelatedUserID == "" {
			n.RelatedUserID = n.SenderID
		}
	}
	return nil
}
