// Package api serves the user service: a JSON REST interface over the users
// table.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Skryldev/useradmin/db"
	"github.com/Skryldev/useradmin/models"
	"github.com/Skryldev/useradmin/repo"
)

// Messages carried in the {"error": "..."} payload.
const (
	MsgInvalidInput   = "Invalid input"
	MsgInvalidID      = "Invalid user id"
	MsgInvalidUser    = "Name and valid email are required"
	MsgNotFound       = "User not found"
	MsgDuplicateName  = "Username already exists"
	MsgFetchFailed    = "Failed to fetch users"
	MsgCreateFailed   = "Failed to create user"
	MsgUpdateFailed   = "Failed to update user"
	MsgDeleteFailed   = "Failed to delete user"
	MsgUnhealthy      = "Database unavailable"
	maxRequestBodyLen = 1 << 20
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves /users and /healthz.
type Handler struct {
	users  repo.UserRepository
	health Pinger
	logger *slog.Logger
}

// NewHandler returns a Handler over users. health may be nil, in which case
// /healthz always reports ok.
func NewHandler(users repo.UserRepository, health Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{users: users, health: health, logger: logger}
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.updateUser).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", h.deleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "api: list users", "error", err)
		writeError(w, http.StatusInternalServerError, MsgFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, u)
	case db.IsNotFound(err):
		writeError(w, http.StatusNotFound, MsgNotFound)
	default:
		h.logger.ErrorContext(r.Context(), "api: get user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, MsgFetchFailed)
	}
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in models.CreateUserParams
	if !decodeBody(w, r, &in) {
		return
	}
	if !valid(in.Name, in.Email) {
		writeError(w, http.StatusBadRequest, MsgInvalidUser)
		return
	}

	u, err := h.users.Insert(r.Context(), in)
	switch {
	case err == nil:
		h.logger.InfoContext(r.Context(), "api: user created", "id", u.ID)
		writeJSON(w, http.StatusCreated, u)
	case db.IsDuplicateKey(err):
		writeError(w, http.StatusConflict, MsgDuplicateName)
	default:
		h.logger.ErrorContext(r.Context(), "api: create user", "error", err)
		writeError(w, http.StatusInternalServerError, MsgCreateFailed)
	}
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in models.User
	if !decodeBody(w, r, &in) {
		return
	}
	if !valid(in.Name, in.Email) {
		writeError(w, http.StatusBadRequest, MsgInvalidUser)
		return
	}

	u, err := h.users.Update(r.Context(), models.UpdateUserParams{ID: id, Name: in.Name, Email: in.Email})
	switch {
	case err == nil:
		h.logger.InfoContext(r.Context(), "api: user updated", "id", id)
		writeJSON(w, http.StatusOK, u)
	case db.IsNotFound(err):
		writeError(w, http.StatusNotFound, MsgNotFound)
	case db.IsDuplicateKey(err):
		writeError(w, http.StatusConflict, MsgDuplicateName)
	default:
		h.logger.ErrorContext(r.Context(), "api: update user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, MsgUpdateFailed)
	}
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// Deleting an id that is already gone leaves the same end state, so it
	// answers 204 like a real delete.
	err := h.users.Delete(r.Context(), id)
	switch {
	case err == nil:
		h.logger.InfoContext(r.Context(), "api: user deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)
	case db.IsNotFound(err):
		h.logger.DebugContext(r.Context(), "api: delete of missing user", "id", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.logger.ErrorContext(r.Context(), "api: delete user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, MsgDeleteFailed)
	}
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "api: health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, MsgUnhealthy)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func valid(name, email string) bool {
	return name != "" && models.IsValidEmail(email)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, MsgInvalidID)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyLen))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, MsgInvalidInput)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
