package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationType_Valid(t *testing.T) {
	for _, nt := range NotificationTypes {
		assert.True(t, nt.Valid(), "type %s must be valid", nt)
	}
	assert.False(t, NotificationType("poke").Valid())
	assert.False(t, NotificationType("").Valid())
}

func TestNotificationType_Message(t *testing.T) {
	cases := map[NotificationType]string{
		TypeLikePost:       "bob liked your post",
		TypeLikeComment:    "bob liked your comment",
		TypeCommentPost:    "bob commented on your post",
		TypeReplyComment:   "bob replied to your comment",
		TypeFollow:         "bob started following you",
		TypeUnfollow:       "bob unfollowed you",
		TypeMentionPost:    "bob mentioned you in a post",
		TypeMentionComment: "bob mentioned you in a comment",
		TypeRetweet:        "bob retweeted your post",
		TypePostPublished:  "bob published a new post",
	}
	for nt, want := range cases {
		assert.Equal(t, want, nt.Message("bob"))
	}
}

func TestNotificationType_MessageFallback(t *testing.T) {
	assert.Equal(t, "bob interacted with your content", NotificationType("poke").Message("bob"))
}

func TestValidateRefs_PostTypesRequirePost(t *testing.T) {
	for _, nt := range []NotificationType{TypeLikePost, TypeCommentPost, TypeMentionPost, TypeRetweet, TypePostPublished} {
		n := &Notification{Type: nt, SenderID: "u2"}
		err := n.ValidateRefs()
		require.Error(t, err, "type %s", nt)
		assert.ErrorIs(t, err, ErrBadRequest)

		n.RelatedPostID = "p1"
		assert.NoError(t, n.ValidateRefs())
	}
}

func TestValidateRefs_CommentTypesRequireComment(t *testing.T) {
	for _, nt := range []NotificationType{TypeLikeComment, TypeReplyComment, TypeMentionComment} {
		n := &Notification{Type: nt, SenderID: "u2"}
		err := n.ValidateRefs()
		require.Error(t, err, "type %s", nt)
		assert.ErrorIs(t, err, ErrBadRequest)

		n.RelatedCommentID = "c1"
		assert.NoError(t, n.ValidateRefs())
	}
}

func TestValidateRefs_FollowDefaultsRelatedUserToSender(t *testing.T) {
	for _, nt := range []NotificationType{TypeFollow, TypeUnfollow} {
		n := &Notification{Type: nt, SenderID: "u2"}
		require.NoError(t, n.ValidateRefs())
		assert.Equal(t, "u2", n.RelatedUserID)
	}
}

func TestValidateRefs_ExplicitRelatedUserPreserved(t *testing.T) {
	n := &Notification{Type: TypeFollow, SenderID: "u2", RelatedUserID: "u9"}
	require.NoError(t, n.ValidateRefs())
	assert.Equal(t, "u9", n.RelatedUserID)
}

func TestUserSummary(t *testing.T) {
	u := &User{UserID: "u1", Username: "alice", ProfilePicture: "pic.png", IsVerified: true, Email: "a@example.com"}
	s := u.Summary()
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "pic.png", s.ProfilePicture)
	assert.True(t, s.IsVerified)
}
