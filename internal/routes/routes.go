package routes

import (
	"github.com/go-chi/chi/v5"

	"cleanup/internal/auth"
	"cleanup/internal/handlers"
	"cleanup/internal/middleware"
	"cleanup/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	userHandler *handlers.UserHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	users auth.UserFetcher,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/users/register", userHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/users/login", userHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/users/pw-change-request", userHandler.RequestPasswordChange)

	// Token links arrive from mail clients as plain GETs.
	router.Get("/users/verify/{token}", userHandler.Verify)
	router.Get("/users/pw-confirm/{token}", userHandler.ConfirmPasswordChange)

	// Admin routes - authentication plus the admin role
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))
		r.Use(auth.RequireRole(users, models.RoleAdmin))

		r.Get("/admin/users", adminHandler.ListUsers)
		r.Get("/admin/users/subscribed", adminHandler.ListSubscribed)
		r.Get("/admin/users/{id}", adminHandler.GetUser)
		r.Post("/admin/users/bulk", adminHandler.BulkRegister)
		r.Put("/admin/users/{id}/banned", adminHandler.SetBanned)
		r.Put("/admin/users/banned", adminHandler.BulkSetBanned)
		r.Delete("/admin/users/{id}", adminHandler.SoftDeleteUser)
		r.Post("/admin/users/delete", adminHandler.BulkSoftDelete)

		// Hard deletion is superadmin-only.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(users, models.RoleSuperadmin))
			r.Delete("/admin/users/{id}/purge", adminHandler.DeleteUser)
			r.Post("/admin/users/purge", adminHandler.BulkDelete)
		})
	})
}
