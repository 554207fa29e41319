package clients

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes staff account endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers the client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.register)
	r.Get("/", h.list)
	r.Get("/names", h.names)
	r.Post("/password/reset", h.resetPassword)
	r.Put("/password", h.updatePassword)
	r.Put("/{username}/lock", h.setLocked)
}

type registerRequest struct {
	Username     string `json:"username" validate:"required,min=2,max=50"`
	DisplayName  string `json:"displayName" validate:"required,max=100"`
	Password     string `json:"password" validate:"required,min=8"`
	Email        string `json:"email" validate:"required,email"`
	DepartmentID int64  `json:"departmentId" validate:"min=0"`
}

type clientResponse struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	Active       bool      `json:"active"`
	Locked       bool      `json:"locked"`
	DepartmentID int64     `json:"departmentId,omitempty"`
	RoleIDs      []int64   `json:"roleIds"`
	LastLoginAt  time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id, err := h.service.Register(r.Context(), RegisterInput{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Password:     req.Password,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		if err == ErrDuplicateUsername {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Username: r.URL.Query().Get("username"),
		Page:     queryInt(r, "page"),
		PerPage:  queryInt(r, "perPage"),
	}
	filter.DepartmentID = int64(queryInt(r, "departmentId"))

	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]clientResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      out,
		"pagination": pageMeta(page),
	})
}

func (h *Handler) names(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Names())
}

type resetPasswordRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Username, req.Email); err != nil {
		if h.logger != nil {
			h.logger.Error("password reset", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated client")
		return
	}
	var req updatePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdatePassword(r.Context(), identity.Username, req.OldPassword, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

func (h *Handler) setLocked(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var req lockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.service.SetLocked(r.Context(), username, req.Locked); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(c Client) clientResponse {
	return clientResponse{
		ID:           c.ID,
		Username:     c.Username,
		DisplayName:  c.DisplayName,
		Email:        c.Email,
		Active:       c.Active,
		Locked:       c.Locked,
		DepartmentID: c.DepartmentID,
		RoleIDs:      c.RoleIDs,
		LastLoginAt:  c.LastLoginAt,
		CreatedAt:    c.CreatedAt,
	}
}

func pageMeta(p shared.Pagination) map[string]int {
	return map[string]int{
		"page":       p.Page,
		"perPage":    p.PerPage,
		"total":      p.Total,
		"totalPages": p.TotalPages,
	}
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}
