package subscriptions

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/pkg/httputil"
	"github.com/tkazmier/projectwatch/internal/scratch"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrAlreadyExists, Status: http.StatusConflict, Message: "subject is already tracked for this destination"},
	{Error: ErrNotFound, Status: http.StatusNotFound, Message: "subject is not tracked for this destination"},
}

// Handler exposes the subscription command surface over HTTP.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new subscriptions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the command-surface routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.Subscribe)
		r.Delete("/", h.Unsubscribe)
		r.Get("/", h.List)
	})
}

// SubscriptionRequest is the body for subscribe and unsubscribe.
type SubscriptionRequest struct {
	DestinationKind string `json:"destination_kind" validate:"required,oneof=direct channel"`
	DestinationID   string `json:"destination_id" validate:"required"`
	Subject         string `json:"subject" validate:"required,max=64"`
}

// Subscribe handles POST /subscriptions.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	dest := domain.Destination{Kind: domain.DestinationKind(req.DestinationKind), ID: req.DestinationID}
	sub, err := h.service.Subscribe(r.Context(), dest, req.Subject)
	if err != nil {
		var fetchErr *scratch.FetchError
		if errors.As(err, &fetchErr) {
			httputil.Error(w, http.StatusBadGateway, "could not fetch the subject's current projects")
			return
		}
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /subscriptions.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	dest := domain.Destination{Kind: domain.DestinationKind(req.DestinationKind), ID: req.DestinationID}
	if err := h.service.Unsubscribe(r.Context(), dest, req.Subject); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /subscriptions?destination_kind=...&destination_id=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind := domain.DestinationKind(r.URL.Query().Get("destination_kind"))
	id := r.URL.Query().Get("destination_id")

	if !kind.Valid() || id == "" {
		httputil.Error(w, http.StatusBadRequest, "destination_kind and destination_id are required")
		return
	}

	subjects, err := h.service.List(r.Context(), domain.Destination{Kind: kind, ID: id})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"destination_kind": kind,
		"destination_id":   id,
		"subjects":         subjects,
	})
}
