package http

import (
	"github.com/fazil2161/pingme/internal/application/notification"
	"github.com/fazil2161/pingme/internal/application/session"
	"github.com/fazil2161/pingme/internal/infrastructure/dynamo"
	jwtinfra "github.com/fazil2161/pingme/internal/infrastructure/jwt"
	"github.com/fazil2161/pingme/internal/realtime"
)

// Deps holds everything the router needs. Session and notification services
// are constructed by the caller because they are shared with the realtime
// hub and the background purge loop.
type Deps struct {
	UserRepo    *dynamo.UserRepo
	SessionRepo *dynamo.SessionRepo
	PostRepo    *dynamo.PostRepo
	CommentRepo *dynamo.CommentRepo
	FollowRepo  *dynamo.FollowRepo

	SessionSvc      session.Service
	NotificationSvc notification.Service

	Hub      *realtime.Hub
	Registry *realtime.Registry

	JWTProvider *jwtinfra.Provider
}
