package domain

import "time"

type Post struct {
	PostID       string       `json:"id" dynamodbav:"post_id"`
	AuthorID     string       `json:"author_id" dynamodbav:"author_id"`
	Text         string       `json:"text" dynamodbav:"text"`
	LikedBy      []string     `json:"-" dynamodbav:"liked_by,stringset,omitempty"`
	LikeCount    int          `json:"like_count" dynamodbav:"like_count"`
	CommentCount int          `json:"comment_count" dynamodbav:"comment_count"`
	IsDeleted    bool         `json:"-" dynamodbav:"is_deleted"`
	Author       *UserSummary `json:"author,omitempty" dynamodbav:"-"`
	CreatedAt    time.Time    `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time    `json:"updated" dynamodbav:"updated_at"`
}

// PostSummary is the denormalized post shape embedded in realtime payloads.
// Text is a snippet, not the full body.
type PostSummary struct {
	PostID string `json:"id"`
	Text   string `json:"text"`
}

const postSnippetRunes = 80

// Summary returns the post's payload form with the text clipped to a snippet.
func (p *Post) Summary() PostSummary {
	text := p.Text
	if r := []rune(text); len(r) > postSnippetRunes {
		text = string(r[:postSnippetRunes])
	}
	return PostSummary{PostID: p.PostID, Text: text}
}

// IsLikedBy reports whether userID is in the post's like set.
func (p *Post) IsLikedBy(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

type CreatePostRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

type Comment struct {
	CommentID string       `json:"id" dynamodbav:"comment_id"`
	PostID    string       `json:"post_id" dynamodbav:"post_id"`
	AuthorID  string       `json:"author_id" dynamodbav:"author_id"`
	ParentID  string       `json:"parent_id,omitempty" dynamodbav:"parent_id"`
	Text      string       `json:"text" dynamodbav:"text"`
	IsDeleted bool         `json:"-" dynamodbav:"is_deleted"`
	Author    *UserSummary `json:"author,omitempty" dynamodbav:"-"`
	CreatedAt time.Time    `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time    `json:"updated" dynamodbav:"updated_at"`
}

type CreateCommentRequest struct {
	Text     string `json:"text" validate:"required,max=280"`
	ParentID string `json:"parent_id"`
}
