package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/pkg/httputil"
	"github.com/ignite/campaign-autopilot/internal/service/campaign"
)

// CampaignHandlers serves the campaign CRUD and lifecycle endpoints.
type CampaignHandlers struct {
	svc *campaign.Service
}

// NewCampaignHandlers creates the campaign handler set.
func NewCampaignHandlers(svc *campaign.Service) *CampaignHandlers {
	return &CampaignHandlers{svc: svc}
}

// RegisterRoutes mounts the campaign routes on the given router.
func (h *CampaignHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdateRecipients)
			r.Delete("/", h.HandleDelete)
			r.Post("/activate", h.HandleActivate)
			r.Post("/cancel", h.HandleCancel)
			r.Get("/events", h.HandleEvents)
		})
	})
}

// HandleCreate creates a campaign.
// POST /api/campaigns
func (h *CampaignHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	c, err := h.svc.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// HandleList lists campaigns with optional status filter and pagination.
// GET /api/campaigns?status=active&limit=20&offset=0
func (h *CampaignHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	f := campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	list, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	httputil.OK(w, map[string]any{
		"campaigns": list,
		"total":     total,
	})
}

// HandleGet returns a single campaign.
// GET /api/campaigns/{id}
func (h *CampaignHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// UpdateRecipientsRequest is the body for recipient edits.
type UpdateRecipientsRequest struct {
	RecipientEmails []string `json:"recipient_emails"`
}

// HandleUpdateRecipients replaces the recipient list of a pending campaign.
// PUT /api/campaigns/{id}
func (h *CampaignHandlers) HandleUpdateRecipients(w http.ResponseWriter, r *http.Request) {
	var req UpdateRecipientsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.UpdateRecipients(r.Context(), id, req.RecipientEmails); err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleDelete removes a pending or finished campaign.
// DELETE /api/campaigns/{id}
func (h *CampaignHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleActivate starts a pending campaign.
// POST /api/campaigns/{id}/activate
func (h *CampaignHandlers) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Activate(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleCancel permanently stops a campaign.
// POST /api/campaigns/{id}/cancel
func (h *CampaignHandlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleEvents returns the campaign's recent audit events.
// GET /api/campaigns/{id}/events?limit=50
func (h *CampaignHandlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := h.svc.Events(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evs == nil {
		evs = []domain.CampaignEvent{}
	}
	httputil.OK(w, map[string]any{"events": evs})
}

// writeServiceError maps service and domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		httputil.BadRequestField(w, cfgErr.Field, cfgErr.Reason)
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrNotEditable),
		errors.Is(err, campaign.ErrConflict):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
