package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/go-contacts-api/internal/httputil"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

var (
	errMissingAuth       = errors.New("missing authentication")
	errInvalidAuthHeader = errors.New("invalid authorization header format")
)

// Middleware handles authentication for protected routes
type Middleware struct {
	service *Service
}

func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// RequireAuth validates the Bearer access token and stores the user in the request context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			respondUnauthorized(w, err)
			return
		}

		current, err := m.service.Authenticate(r.Context(), raw)
		if err != nil {
			if KindOf(err) == KindUnauthorized {
				respondUnauthorized(w, err)
				return
			}
			logging.GetLoggerFromContext(r.Context()).Error("failed to authenticate request", "error", err.Error())
			respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		logger := logging.GetLoggerFromContext(r.Context()).With("user_id", current.ID)
		ctx := user.WithCurrent(r.Context(), current)
		ctx = logging.WithLogger(ctx, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIdentity keys rate limits by the authenticated user.
// It must run behind RequireAuth.
func UserIdentity(r *http.Request) string {
	current, ok := user.FromContext(r.Context())
	if !ok {
		return ""
	}
	return current.Email
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingAuth
	}
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return "", errInvalidAuthHeader
	}
	return strings.TrimSpace(raw), nil
}

func respondUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	switch {
	case errors.Is(err, errMissingAuth):
		respondError(w, "Not authenticated", httputil.CodeMissingAuth, http.StatusUnauthorized)
	case errors.Is(err, errInvalidAuthHeader):
		respondError(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidRefreshToken):
		respondError(w, "Invalid refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
	default:
		respondError(w, "Could not validate credentials", httputil.CodeInvalidToken, http.StatusUnauthorized)
	}
}
