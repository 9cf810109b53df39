package user

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/go-contacts-api/internal/httputil"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
)

// MaxAvatarSize is the largest accepted avatar upload
const MaxAvatarSize = 2 << 20 // 2 MiB

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarUploader stores avatar images and returns their public URL
type AvatarUploader interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type avatarRepository interface {
	UpdateAvatar(ctx context.Context, id int64, url string) (*User, error)
}

// Handler contains HTTP handlers for the current user's profile
type Handler struct {
	repo    avatarRepository
	avatars AvatarUploader
}

// NewHandler builds the profile handler. avatars may be nil when no bucket is configured.
func NewHandler(repo avatarRepository, avatars AvatarUploader) *Handler {
	return &Handler{repo: repo, avatars: avatars}
}

// Me returns the authenticated user
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} User
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /api/users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Could not validate credentials", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	httputil.RespondJSON(w, current, http.StatusOK)
}

// UpdateAvatar uploads a new avatar image for the authenticated user
// @Summary      Update avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "Avatar image (png, jpeg, gif or webp, at most 2 MiB)"
// @Success      200 {object} User
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      413 {object} httputil.ErrorResponse
// @Failure      415 {object} httputil.ErrorResponse
// @Failure      503 {object} httputil.ErrorResponse
// @Router       /api/users/avatar [patch]
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	current, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Could not validate credentials", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if h.avatars == nil {
		httputil.RespondErrorWithCode(w, "Avatar storage is not configured", httputil.CodeStorageDisabled, http.StatusServiceUnavailable)
		return
	}

	// Leave room for multipart headers around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize+64<<10)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondErrorWithCode(w, "Avatar must be at most 2 MiB", httputil.CodeFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("invalid avatar upload", "error", err)
		httputil.RespondErrorWithCode(w, "multipart field 'file' is required", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarSize+1))
	if err != nil {
		logger.Warn("failed to read avatar upload", "error", err)
		httputil.RespondErrorWithCode(w, "failed to read upload", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if len(data) > MaxAvatarSize {
		httputil.RespondErrorWithCode(w, "Avatar must be at most 2 MiB", httputil.CodeFileTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	contentType := http.DetectContentType(data)
	ext, allowed := avatarExtensions[contentType]
	if !allowed {
		httputil.RespondErrorWithCode(w, "Avatar must be a png, jpeg, gif or webp image", httputil.CodeUnsupportedFile, http.StatusUnsupportedMediaType)
		return
	}

	key := fmt.Sprintf("avatars/%d/%s%s", current.ID, uuid.NewString(), ext)
	url, err := h.avatars.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		logger.Error("avatar upload failed", "error", err)
		httputil.RespondErrorWithCode(w, "failed to store avatar", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	updated, err := h.repo.UpdateAvatar(r.Context(), current.ID, url)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to save avatar url", "error", err)
		httputil.RespondErrorWithCode(w, "failed to update avatar", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("avatar updated", "user_id", updated.ID)
	httputil.RespondJSON(w, updated, http.StatusOK)
}
