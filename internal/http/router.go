package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/go-contacts-api/internal/auth"
	"github.com/redmonkez12/go-contacts-api/internal/config"
	"github.com/redmonkez12/go-contacts-api/internal/contact"
	"github.com/redmonkez12/go-contacts-api/internal/httputil"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/ratelimit"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Users          *user.Handler
	Contacts       *contact.Handler
	Limiter        *ratelimit.Limiter
	// Health reports whether the database answers
	Health func(ctx context.Context) error
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Retry-After", "X-Process-Time"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(ProcessTime)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	// Swagger UI is only mounted in development
	if cfg.Server.IsDevelopment() {
		logger.Info("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	contactsList := ratelimit.Policy{
		Name:        ratelimit.ContactsList.Name,
		MaxRequests: cfg.RateLimit.ContactsListLimit,
		Window:      cfg.RateLimit.ContactsListWindow,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthchecker", handleHealth(h.Health))

		r.Route("/auth", func(r chi.Router) {
			r.With(h.Limiter.Middleware(ratelimit.Signup, ratelimit.ByIP)).Post("/signup", h.Auth.Signup)
			r.With(h.Limiter.Middleware(ratelimit.Login, ratelimit.ByIP)).Post("/login", h.Auth.Login)
			r.Get("/refresh_token", h.Auth.RefreshToken)
			r.Get("/confirmed_email/{token}", h.Auth.ConfirmedEmail)
			r.With(h.Limiter.Middleware(ratelimit.RequestEmail, ratelimit.ByIP)).Post("/request_email", h.Auth.RequestEmail)
			r.With(h.AuthMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
		})

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAuth)

			r.Get("/users/me", h.Users.Me)
			r.Patch("/users/avatar", h.Users.UpdateAvatar)

			r.Route("/contacts", func(r chi.Router) {
				r.With(h.Limiter.Middleware(contactsList, auth.UserIdentity)).Get("/", h.Contacts.List)
				r.Post("/", h.Contacts.Create)
				r.Get("/id/{id}", h.Contacts.GetByID)
				r.Get("/name/{name}", h.Contacts.ListByName)
				r.Get("/surname/{surname}", h.Contacts.ListBySurname)
				r.Get("/email/{email}", h.Contacts.GetByEmail)
				r.Get("/birthdays_in_next_week", h.Contacts.UpcomingBirthdays)
				r.Put("/{id}", h.Contacts.Update)
				r.Delete("/{id}", h.Contacts.Delete)
			})
		})
	})

	return r
}

// handleHealth checks that the API and its database are reachable
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200 {object} httputil.MessageResponse
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/healthchecker [get]
func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logging.GetLoggerFromContext(r.Context()).Error("health check failed", "error", err.Error())
				httputil.RespondErrorWithCode(w, "Error connecting to the database", httputil.CodeInternalError, http.StatusInternalServerError)
				return
			}
		}
		httputil.RespondMessage(w, "Welcome to Contacts API!", http.StatusOK)
	}
}
