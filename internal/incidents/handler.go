package incidents

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/pkg/httputil"
)

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incident handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers routes readable without authentication.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/incidents/public", h.ListPublicIncidents)
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Post("/", h.CreateIncident)
		r.Get("/", h.ListIncidents)
		r.Get("/{id}", h.GetIncident)
		r.Get("/{id}/updates", h.ListUpdates)
		r.Post("/{id}/updates", h.AppendUpdate)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/resolve", h.Resolve)
	})
}

// CreateIncidentRequest represents incident creation request body.
type CreateIncidentRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=255"`
	Description string     `json:"description" validate:"required,min=1,max=5000"`
	Status      string     `json:"status" validate:"omitempty,oneof=investigating identified monitoring"`
	Impact      string     `json:"impact" validate:"omitempty,oneof=none minor major critical"`
	ServiceIDs  []string   `json:"service_ids" validate:"required,min=1,dive,uuid"`
	StartedAt   *time.Time `json:"started_at"`
}

// CreateIncident handles POST /incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.CreateIncident(r.Context(), CreateIncidentInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.IncidentStatus(req.Status),
		Impact:      domain.Impact(req.Impact),
		ServiceIDs:  req.ServiceIDs,
		StartedAt:   req.StartedAt,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// ListIncidents handles GET /incidents. Supports status and service_id filters.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	var filter IncidentFilter

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.IncidentStatus(statusStr)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}
	if serviceID := r.URL.Query().Get("service_id"); serviceID != "" {
		filter.ServiceID = &serviceID
	}

	list, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, list)
}

// ListPublicIncidents handles GET /incidents/public. Resolved incidents
// are excluded from the status page view.
func (h *Handler) ListPublicIncidents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPublicIncidents(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, list)
}

// AppendUpdateRequest represents update log append request body.
type AppendUpdateRequest struct {
	Message string `json:"message" validate:"required,min=1,max=5000"`
	Status  string `json:"status" validate:"omitempty,oneof=update resolved"`
}

// AppendUpdate handles POST /incidents/{id}/updates.
func (h *Handler) AppendUpdate(w http.ResponseWriter, r *http.Request) {
	var req AppendUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	update, err := h.service.AppendUpdate(r.Context(),
		chi.URLParam(r, "id"),
		req.Message,
		domain.UpdateStatus(req.Status),
		httputil.GetUserID(r.Context()),
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, update)
}

// ListUpdates handles GET /incidents/{id}/updates.
func (h *Handler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.service.ListUpdates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, http.StatusOK, updates)
}

// UpdateStatusRequest represents status change request body.
type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=investigating identified monitoring"`
	Message string `json:"message" validate:"max=5000"`
}

// UpdateStatus handles PATCH /incidents/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.UpdateStatus(r.Context(),
		chi.URLParam(r, "id"),
		domain.IncidentStatus(req.Status),
		req.Message,
		httputil.GetUserID(r.Context()),
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// ResolveRequest represents resolve request body. The body is optional.
type ResolveRequest struct {
	Message string `json:"message" validate:"max=5000"`
}

// Resolve handles POST /incidents/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httputil.ValidationError(w, err)
			return
		}
	}

	incident, err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"), req.Message, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
		{Error: ErrAlreadyResolved, Status: http.StatusConflict},
		{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
		{Error: ErrInvalidImpact, Status: http.StatusBadRequest},
		{Error: ErrNoAffectedServices, Status: http.StatusBadRequest},
		{Error: ErrAffectedServiceNotFound, Status: http.StatusBadRequest},
		{Error: ErrResolveViaStatus, Status: http.StatusBadRequest},
	})
}
