package auth

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/go-contacts-api/internal/httputil"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/ratelimit"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	baseURL     string
}

// NewHandler builds the auth handler. baseURL is the public address used in
// confirmation links.
func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, baseURL string) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		baseURL:     baseURL,
	}
}

// LoginRequest represents the JSON login body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequestEmailRequest represents the confirmation email request body
type RequestEmailRequest struct {
	Email string `json:"email"`
}

// SignupResponse represents the signup response
type SignupResponse struct {
	User   *user.User `json:"user"`
	Detail string     `json:"detail"`
}

// Signup handles account registration
// @Summary      Register a new user
// @Description  Create an unconfirmed account. A confirmation email is sent to the address.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupInput true "Account data"
// @Success      201 {object} SignupResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Account already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /api/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SignupInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	newUser, err := h.service.Signup(r.Context(), req, h.baseURL)
	if err != nil {
		h.respondServiceError(w, r, "signup", err)
		return
	}

	logger.Info("user signed up", "user_id", newUser.ID)

	httputil.RespondJSON(w, SignupResponse{
		User:   newUser,
		Detail: "User successfully created. Check your email for confirmation.",
	}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Accepts a JSON body {email, password} or an OAuth2 password form (username, password).
// @Tags         auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} TokenPair
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials or email not confirmed"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	req, err := decodeLogin(r)
	if err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, "login", err)
		return
	}

	logger.Info("user logged in")
	httputil.RespondJSON(w, pair, http.StatusOK)
}

// RefreshToken exchanges a refresh token for a new token pair
// @Summary      Refresh tokens
// @Description  Send the refresh token as a Bearer credential. The presented token is rotated; reusing an old one revokes the session.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} TokenPair
// @Failure      401 {object} httputil.ErrorResponse "Invalid refresh token"
// @Router       /api/auth/refresh_token [get]
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	raw, err := bearerToken(r)
	if err != nil {
		respondUnauthorized(w, err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), raw)
	if err != nil {
		h.respondServiceError(w, r, "refresh", err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("refresh token rotated")
	httputil.RespondJSON(w, pair, http.StatusOK)
}

// ConfirmedEmail confirms the address a confirmation token was issued for
// @Summary      Confirm email
// @Tags         auth
// @Produce      json
// @Param        token path string true "Confirmation token"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Verification error"
// @Router       /api/auth/confirmed_email/{token} [get]
func (h *Handler) ConfirmedEmail(w http.ResponseWriter, r *http.Request) {
	alreadyConfirmed, err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, "email confirmation", err)
		return
	}

	if alreadyConfirmed {
		httputil.RespondMessage(w, "Your email is already confirmed", http.StatusOK)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("email confirmed")
	httputil.RespondMessage(w, "Email confirmed", http.StatusOK)
}

// RequestEmail sends a new confirmation email
// @Summary      Resend confirmation email
// @Description  Always succeeds for unknown addresses so accounts cannot be discovered.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RequestEmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /api/auth/request_email [post]
func (h *Handler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RequestEmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if h.rateLimiter != nil {
		onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email)
		if err != nil {
			logger.Error("failed to check email cooldown", "error", err.Error())
		} else if onCooldown {
			h.respondServiceError(w, r, "request email", ErrRateLimited)
			return
		}
	}

	alreadyConfirmed, err := h.service.RequestEmail(r.Context(), req.Email, h.baseURL)
	if err != nil {
		h.respondServiceError(w, r, "request email", err)
		return
	}

	if alreadyConfirmed {
		httputil.RespondMessage(w, "Your email is already confirmed", http.StatusOK)
		return
	}
	httputil.RespondMessage(w, "Check your email for confirmation.", http.StatusOK)
}

// Logout revokes the current session's refresh token
// @Summary      User logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.MessageResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		respondUnauthorized(w, errMissingAuth)
		return
	}

	if err := h.service.Logout(r.Context(), current); err != nil {
		h.respondServiceError(w, r, "logout", err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("user logged out", "user_id", current.ID)
	httputil.RespondMessage(w, "logged out", http.StatusOK)
}

// decodeLogin reads either an OAuth2 password form or a JSON body
func decodeLogin(r *http.Request) (LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return LoginRequest{}, err
		}
		return LoginRequest{
			Email:    r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}, nil
	default:
		var req LoginRequest
		err := httputil.DecodeJSON(r, &req)
		return req, err
	}
}

// respondServiceError maps service errors to status codes and machine-readable codes
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		logger.Warn(op+" failed: validation error", "field", verr.Field)
		respondError(w, verr.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
	case errors.Is(err, ErrAccountExists):
		logger.Warn(op + " failed: account exists")
		respondError(w, "Account already exists", httputil.CodeAccountExists, http.StatusConflict)
	case errors.Is(err, ErrInvalidCredentials):
		logger.Warn(op + " failed: invalid credentials")
		respondError(w, "Invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, ErrEmailNotConfirmed):
		logger.Warn(op + " failed: email not confirmed")
		respondError(w, "Email not confirmed", httputil.CodeEmailNotConfirmed, http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidRefreshToken):
		logger.Warn(op + " failed: invalid refresh token")
		respondError(w, "Invalid refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
	case errors.Is(err, ErrVerificationFailed):
		logger.Warn(op + " failed: verification error")
		respondError(w, "Verification error", httputil.CodeVerificationFailed, http.StatusBadRequest)
	case errors.Is(err, ErrRateLimited):
		logger.Warn(op + " failed: cooldown active")
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
	case KindOf(err) == KindUnauthorized:
		respondUnauthorized(w, err)
	default:
		logger.Error(op+" failed: internal error", "error", err.Error())
		respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
