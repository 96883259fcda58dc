package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/pkg/httputil"
)

// Handler handles HTTP requests for the service catalog.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers routes readable without authentication.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/services/slug/{slug}", h.GetServiceBySlug)
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Route("/services", func(r chi.Router) {
		r.Post("/", h.CreateService)
		r.Get("/{id}", h.GetService)
		r.Put("/{id}", h.UpdateService)
		r.Delete("/{id}", h.DeleteService)
	})
}

// CreateServiceRequest represents service creation request body.
type CreateServiceRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	Status      string  `json:"status" validate:"omitempty,oneof=operational degraded partial_outage major_outage"`
	TeamID      *string `json:"team_id" validate:"omitempty,uuid"`
}

// CreateService handles POST /services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.CreateService(r.Context(), CreateServiceInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.ServiceStatus(req.Status),
		TeamID:      req.TeamID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// GetService handles GET /services/{id}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, service)
}

// GetServiceBySlug handles GET /services/slug/{slug}.
func (h *Handler) GetServiceBySlug(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.GetServiceBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, service)
}

// ListServices handles GET /services. Supports team_id and status filters.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	var filter ServiceFilter

	if teamID := r.URL.Query().Get("team_id"); teamID != "" {
		filter.TeamID = &teamID
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.ServiceStatus(statusStr)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	services, err := h.service.ListServices(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, services)
}

// UpdateServiceRequest represents service update request body.
type UpdateServiceRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	Status      string  `json:"status" validate:"required,oneof=operational degraded partial_outage major_outage"`
	TeamID      *string `json:"team_id" validate:"omitempty,uuid"`
}

// UpdateService handles PUT /services/{id}.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.UpdateService(r.Context(), chi.URLParam(r, "id"), UpdateServiceInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.ServiceStatus(req.Status),
		TeamID:      req.TeamID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /services/{id}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrServiceNotFound, Status: http.StatusNotFound},
		{Error: ErrServiceExists, Status: http.StatusConflict},
		{Error: ErrTeamNotFound, Status: http.StatusBadRequest},
	})
}
