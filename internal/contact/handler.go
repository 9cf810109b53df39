package contact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/go-contacts-api/internal/httputil"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

const (
	defaultLimit = 10
	maxLimit     = 1000
	birthdayDays = 7
)

// Store is the contact persistence used by Handler.
// Repository is the PostgreSQL implementation.
type Store interface {
	List(ctx context.Context, ownerID int64, limit, offset int) ([]Contact, error)
	ListByName(ctx context.Context, ownerID int64, name string, limit, offset int) ([]Contact, error)
	ListBySurname(ctx context.Context, ownerID int64, surname string, limit, offset int) ([]Contact, error)
	ListUpcomingBirthdays(ctx context.Context, ownerID int64, today time.Time, days, limit, offset int) ([]Contact, error)
	Get(ctx context.Context, ownerID, id int64) (*Contact, error)
	GetByEmail(ctx context.Context, ownerID int64, email string) (*Contact, error)
	Create(ctx context.Context, ownerID int64, in Input, birthday time.Time) (*Contact, error)
	Update(ctx context.Context, ownerID, id int64, in Input, birthday time.Time) (*Contact, error)
	Delete(ctx context.Context, ownerID, id int64) error
}

// Handler contains HTTP handlers for the authenticated user's contacts.
// All routes must run behind auth.Middleware.RequireAuth.
type Handler struct {
	store Store
	now   func() time.Time
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// List returns a page of contacts
// @Summary      List contacts
// @Description  Limited to 10 requests per minute per user.
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query int false "Page size (max 1000)" default(10)
// @Param        offset query int false "Rows to skip" default(0)
// @Success      200 {array} Contact
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      429 {object} httputil.ErrorResponse
// @Router       /api/contacts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, limit, offset, ok := h.pagedRequest(w, r)
	if !ok {
		return
	}

	contacts, err := h.store.List(r.Context(), owner.ID, limit, offset)
	h.respondList(w, r, contacts, err)
}

// Create adds a contact
// @Summary      Create contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body Input true "Contact"
// @Success      201 {object} Contact
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /api/contacts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	owner, ok := currentUser(w, r)
	if !ok {
		return
	}

	in, birthday, ok := decodeInput(w, r)
	if !ok {
		return
	}

	created, err := h.store.Create(r.Context(), owner.ID, in, birthday)
	if err != nil {
		logger.Error("failed to create contact", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to create contact", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("contact created", "contact_id", created.ID)
	httputil.RespondJSON(w, created, http.StatusCreated)
}

// GetByID returns one contact
// @Summary      Find contact by ID
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Contact ID"
// @Success      200 {object} Contact
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/contacts/id/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	found, err := h.store.Get(r.Context(), owner.ID, id)
	h.respondOne(w, r, found, err, fmt.Sprintf("Contact with ID=%d not found", id))
}

// ListByName returns contacts with the given name
// @Summary      Find contacts by name
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        name   path  string true  "Name"
// @Param        limit  query int    false "Page size (max 1000)" default(10)
// @Param        offset query int    false "Rows to skip" default(0)
// @Success      200 {array} Contact
// @Router       /api/contacts/name/{name} [get]
func (h *Handler) ListByName(w http.ResponseWriter, r *http.Request) {
	owner, limit, offset, ok := h.pagedRequest(w, r)
	if !ok {
		return
	}

	contacts, err := h.store.ListByName(r.Context(), owner.ID, chi.URLParam(r, "name"), limit, offset)
	h.respondList(w, r, contacts, err)
}

// ListBySurname returns contacts with the given surname
// @Summary      Find contacts by surname
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        surname path  string true  "Surname"
// @Param        limit   query int    false "Page size (max 1000)" default(10)
// @Param        offset  query int    false "Rows to skip" default(0)
// @Success      200 {array} Contact
// @Router       /api/contacts/surname/{surname} [get]
func (h *Handler) ListBySurname(w http.ResponseWriter, r *http.Request) {
	owner, limit, offset, ok := h.pagedRequest(w, r)
	if !ok {
		return
	}

	contacts, err := h.store.ListBySurname(r.Context(), owner.ID, chi.URLParam(r, "surname"), limit, offset)
	h.respondList(w, r, contacts, err)
}

// GetByEmail returns the contact with the given email
// @Summary      Find contact by email
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        email path string true "Email"
// @Success      200 {object} Contact
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/contacts/email/{email} [get]
func (h *Handler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(w, r)
	if !ok {
		return
	}

	addr := chi.URLParam(r, "email")
	found, err := h.store.GetByEmail(r.Context(), owner.ID, addr)
	h.respondOne(w, r, found, err, fmt.Sprintf("Contact with email %s not found", addr))
}

// UpcomingBirthdays returns contacts with a birthday in the next seven days
// @Summary      Birthdays in the next week
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query int false "Page size (max 1000)" default(10)
// @Param        offset query int false "Rows to skip" default(0)
// @Success      200 {array} Contact
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/contacts/birthdays_in_next_week [get]
func (h *Handler) UpcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	owner, limit, offset, ok := h.pagedRequest(w, r)
	if !ok {
		return
	}

	contacts, err := h.store.ListUpcomingBirthdays(r.Context(), owner.ID, h.now(), birthdayDays, limit, offset)
	if err == nil && len(contacts) == 0 {
		httputil.RespondErrorWithCode(w, "Contacts with birthdays for the next week not found", httputil.CodeContactNotFound, http.StatusNotFound)
		return
	}
	h.respondList(w, r, contacts, err)
}

// Update replaces a contact
// @Summary      Update contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int   true "Contact ID"
// @Param        request body Input true "Contact"
// @Success      200 {object} Contact
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/contacts/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	in, birthday, ok := decodeInput(w, r)
	if !ok {
		return
	}

	updated, err := h.store.Update(r.Context(), owner.ID, id, in, birthday)
	h.respondOne(w, r, updated, err, fmt.Sprintf("Contact with ID %d not found", id))
}

// Delete removes a contact
// @Summary      Delete contact
// @Tags         contacts
// @Security     BearerAuth
// @Param        id path int true "Contact ID"
// @Success      204
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/contacts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), owner.ID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, fmt.Sprintf("Contact with ID=%d not found", id), httputil.CodeContactNotFound, http.StatusNotFound)
			return
		}
		logging.GetLoggerFromContext(r.Context()).Error("failed to delete contact", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to delete contact", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("contact deleted", "contact_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pagedRequest(w http.ResponseWriter, r *http.Request) (*user.User, int, int, bool) {
	owner, ok := currentUser(w, r)
	if !ok {
		return nil, 0, 0, false
	}
	limit, offset, err := parsePage(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return nil, 0, 0, false
	}
	return owner, limit, offset, true
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, contacts []Contact, err error) {
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to list contacts", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list contacts", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}
	httputil.RespondJSON(w, contacts, http.StatusOK)
}

func (h *Handler) respondOne(w http.ResponseWriter, r *http.Request, c *Contact, err error, notFound string) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, notFound, httputil.CodeContactNotFound, http.StatusNotFound)
			return
		}
		logging.GetLoggerFromContext(r.Context()).Error("contact query failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}
	httputil.RespondJSON(w, c, http.StatusOK)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Could not validate credentials", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return nil, false
	}
	return owner, true
}

func contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		httputil.RespondErrorWithCode(w, "id must be a positive integer", httputil.CodeValidationFailed, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (Input, time.Time, bool) {
	var in Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		logging.GetLoggerFromContext(r.Context()).Warn("invalid contact request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return Input{}, time.Time{}, false
	}

	in.Normalize()
	birthday, err := in.Validate()
	if err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return Input{}, time.Time{}, false
	}
	return in, birthday, true
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
