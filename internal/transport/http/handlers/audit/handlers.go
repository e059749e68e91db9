package audithandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"paycalc/internal/domain/audit"
	"paycalc/internal/transport/http/api"
	"paycalc/internal/transport/http/middleware"
	"paycalc/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/audit/{entityType}/{entityID}", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entityID, ok := shared.IDParam(w, r, "entityID")
	if !ok {
		return
	}
	events, err := h.Service.List(r.Context(), chi.URLParam(r, "entityType"), entityID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(events), middleware.GetRequestID(r.Context()))
}
