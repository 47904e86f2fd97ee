package http

import (
	"net/http"

	"github.com/fazil2161/pingme/internal/application/post"
	"github.com/fazil2161/pingme/internal/application/user"
	"github.com/fazil2161/pingme/internal/config"
	"github.com/fazil2161/pingme/internal/transport/http/handler"
	appmiddleware "github.com/fazil2161/pingme/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:      deps.UserRepo,
		FollowRepo:    deps.FollowRepo,
		SessionRepo:   deps.SessionRepo,
		Notifications: deps.NotificationSvc,
	})
	postSvc := post.NewService(post.ServiceDeps{
		PostRepo:      deps.PostRepo,
		CommentRepo:   deps.CommentRepo,
		UserRepo:      deps.UserRepo,
		FollowRepo:    deps.FollowRepo,
		Notifications: deps.NotificationSvc,
	})

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(deps.SessionSvc)
	userH := handler.NewUserHandler(userSvc)
	postH := handler.NewPostHandler(postSvc)
	notifH := handler.NewNotificationHandler(deps.NotificationSvc)
	presenceH := handler.NewPresenceHandler(deps.Registry)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/register", sessionH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)

		// The hub authenticates during the handshake itself; the token rides
		// in the query string or the Authorization header.
		r.Handle("/ws", deps.Hub)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Delete("/users/{id}", userH.Delete)
			r.Post("/users/{id}/follow", userH.Follow)
			r.Delete("/users/{id}/follow", userH.Unfollow)
			r.Get("/users/{id}/followers", userH.Followers)
			r.Get("/users/{id}/following", userH.Following)
			r.Get("/users/{id}/posts", postH.ListByAuthor)

			r.Post("/posts", postH.Create)
			r.Get("/posts/{id}", postH.Get)
			r.Delete("/posts/{id}", postH.Delete)
			r.Post("/posts/{id}/like", postH.Like)
			r.Delete("/posts/{id}/like", postH.Unlike)
			r.Post("/posts/{id}/comments", postH.Comment)
			r.Get("/posts/{id}/comments", postH.ListComments)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllRead)
			r.Put("/notifications/{id}/read", notifH.MarkRead)
			r.Put("/notifications/{id}/unread", notifH.MarkUnread)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.Get("/presence/online", presenceH.Online)
			r.Get("/presence/{id}", presenceH.Status)
		})
	})

	return r
}
