package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/middleware"
	"github.com/loadmap/api/internal/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the database methods needed by user handlers.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
}

// UserHandler handles user management endpoints.
type UserHandler struct {
	store UserStore
	audit service.Recorder
	log   logrus.FieldLogger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore, audit service.Recorder, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{store: store, audit: audit, log: log}
}

// RegisterRoutes registers user endpoints on the given Chi router.
// Expected to be mounted under /users.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.With(middleware.RequireFullAccess).Post("/", h.Create)
}

// --- Request / Response types ---

type createUserRequest struct {
	Login       string   `json:"login" validate:"required,min=3"`
	Password    string   `json:"password" validate:"required,min=6"`
	FullName    string   `json:"full_name" validate:"required"`
	AccessLevel string   `json:"access_level" validate:"required,oneof=FULL VIEW_ONLY"`
	Modules     []string `json:"modules" validate:"required,min=1"`
}

// --- Handlers ---

// List returns all active users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.log.WithError(err).Error("list users")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a user with a bcrypt-hashed password.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	modules, ok := enum.ParseModules(req.Modules...)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "modules must be ORDERS, LOADS, LOGS or ALL"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Login:          strings.TrimSpace(req.Login),
		HashedPassword: string(hashed),
		FullName:       strings.TrimSpace(req.FullName),
		AccessLevel:    database.AccessLevel(req.AccessLevel),
		Modules:        modules,
	})
	if err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "login already exists"})
			return
		}
		h.log.WithError(err).Error("create user")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.audit.Record(r.Context(), actor, enum.AuditUserCreated, user.Login)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}
