package domain

import "time"

// Follow is one edge of the follow graph: follower -> followee.
type Follow struct {
	FollowerID string    `json:"follower_id" dynamodbav:"follower_id"`
	FolloweeID string    `json:"followee_id" dynamodbav:"followee_id"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}
