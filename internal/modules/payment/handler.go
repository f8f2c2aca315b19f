package payment

import (
	"encoding/json"
	"net/http"

	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes read-only payment endpoints. Payments are driven through
// the till session, never created directly over HTTP.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/{id}", h.getByID)
	})
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}
	in, err := h.service.GetIntent(r.Context(), id)
	if err != nil {
		kind := apperr.KindOf(err)
		respond(w, apperr.HTTPStatus(kind), map[string]string{"error": apperr.Message(err), "kind": string(kind)})
		return
	}
	respond(w, http.StatusOK, in)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
