package teams

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/pkg/httputil"
)

// Handler handles HTTP requests for teams.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new team handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Route("/teams", func(r chi.Router) {
		r.Post("/", h.CreateTeam)
		r.Get("/", h.ListTeams)
		r.Get("/{id}", h.GetTeam)
		r.Put("/{id}", h.UpdateTeam)
		r.Delete("/{id}", h.DeleteTeam)
		r.Post("/{id}/members", h.AddMember)
		r.Delete("/{id}/members/{userID}", h.RemoveMember)
	})
}

// CreateTeamRequest represents team creation request body.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// CreateTeam handles POST /teams. The caller becomes the first admin member.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	team, err := h.service.CreateTeam(r.Context(), req.Name, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, team)
}

// GetTeam handles GET /teams/{id}.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.GetTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, team)
}

// ListTeams handles GET /teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, list)
}

// UpdateTeamRequest represents team rename request body.
type UpdateTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// UpdateTeam handles PUT /teams/{id}.
func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req UpdateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	team, err := h.service.UpdateTeam(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, team)
}

// DeleteTeam handles DELETE /teams/{id}.
func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTeam(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMemberRequest represents member enrollment request body.
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,oneof=member admin"`
}

// AddMember handles POST /teams/{id}/members.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	team, err := h.service.AddMember(r.Context(), chi.URLParam(r, "id"), req.UserID, domain.TeamRole(req.Role))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, team)
}

// RemoveMember handles DELETE /teams/{id}/members/{userID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, team)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrTeamNotFound, Status: http.StatusNotFound},
		{Error: ErrTeamExists, Status: http.StatusConflict},
		{Error: ErrMemberNotFound, Status: http.StatusBadRequest},
		{Error: ErrNotMember, Status: http.StatusNotFound},
	})
}
