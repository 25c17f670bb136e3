package handlers

import (
	"net/http"
	"time"

	"student-chat/internal/config"
	"student-chat/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Auth      *AuthHandlers
	Rooms     *RoomHandlers
	Gateway   http.Handler
	Authn     Authenticator
	Limiter   RateLimiter
	RateLimit config.RateLimitConfig
	Origins   []string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	standard := RateLimit(d.Limiter, "api", d.RateLimit.StandardLimit, d.RateLimit.StandardWindow)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(RateLimit(d.Limiter, "auth", d.RateLimit.AuthLimit, d.RateLimit.AuthWindow)).Group(func(r chi.Router) {
			r.Post("/register", d.Auth.Register)
			r.Post("/login", d.Auth.Login)
		})
		r.With(standard, RequireAuth(d.Authn)).Post("/logout", d.Auth.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(standard)
		r.Use(RequireAuth(d.Authn))
		r.Post("/rooms/{roomId}/files", d.Rooms.SendFile)
		r.Delete("/messages/{messageId}", d.Rooms.DeleteMessage)
	})

	// The gateway authenticates on the upgraded connection itself.
	r.With(standard).Handle("/ws", d.Gateway)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
