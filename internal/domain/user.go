package domain

import "time"

type User struct {
	UserID         string     `json:"id" dynamodbav:"user_id"`
	Username       string     `json:"username" dynamodbav:"username"`
	Email          string     `json:"email" dynamodbav:"email"`
	PasswordHash   string     `json:"-" dynamodbav:"password_hash"`
	Bio            string     `json:"bio,omitempty" dynamodbav:"bio"`
	ProfilePicture string     `json:"profile_picture,omitempty" dynamodbav:"profile_picture"`
	IsVerified     bool       `json:"is_verified" dynamodbav:"is_verified"`
	FollowerCount  int        `json:"follower_count" dynamodbav:"follower_count"`
	FollowingCount int        `json:"following_count" dynamodbav:"following_count"`
	LastActive     time.Time  `json:"last_active" dynamodbav:"last_active"`
	Enable         bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// UserSummary is the denormalized sender shape embedded in realtime payloads.
type UserSummary struct {
	UserID         string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	IsVerified     bool   `json:"is_verified"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID:         u.UserID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		IsVerified:     u.IsVerified,
	}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Bio      string `json:"bio" validate:"max=160"`
}

type UpdateUserRequest struct {
	Username       *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Bio            *string `json:"bio" validate:"omitempty,max=160"`
	ProfilePicture *string `json:"profile_picture"`
}
