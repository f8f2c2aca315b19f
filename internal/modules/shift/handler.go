package shift

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Handler exposes shift HTTP endpoints for the signed-in cashier.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/shifts", func(r chi.Router) {
		r.With(auth.RequireRole(auth.RoleAdmin)).Get("/", h.list)
		r.Post("/", h.open)
		r.Get("/current", h.current)
		r.Get("/{id}", h.getByID)
		// Two-step close: preview the variance, then commit the count
		r.Post("/{id}/prepare-close", h.prepareClose)
		r.Post("/{id}/close", h.close)
	})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	var req OpenRequest
	if !decode(w, r, &req) {
		return
	}
	sh, err := h.service.Open(r.Context(), cashier.ID, cashier.Name, *req.OpeningFloat)
	if apperr.Is(err, apperr.KindAlreadyOpen) && sh != nil {
		respond(w, http.StatusConflict, map[string]interface{}{
			"error": apperr.Message(err),
			"kind":  string(apperr.KindAlreadyOpen),
			"shift": sh,
		})
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, sh)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	sh, err := h.service.Current(r.Context(), cashier.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, sh)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	sh, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if sh.CashierID != cashier.ID && !cashier.HasRole(auth.RoleAdmin) {
		respondErr(w, apperr.New(apperr.KindForbidden, "shift %s belongs to another cashier", id))
		return
	}
	summary, err := h.service.Summarize(r.Context(), sh)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"shift": sh, "summary": summary})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{Status: Status(q.Get("status"))}
	if raw := q.Get("cashier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid cashier id"})
			return
		}
		f.CashierID = &id
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	shifts, err := h.service.List(r.Context(), f)
	if err != nil {
		respondErr(w, err)
		return
	}
	if shifts == nil {
		shifts = []*Shift{}
	}
	respond(w, http.StatusOK, shifts)
}

func (h *Handler) prepareClose(w http.ResponseWriter, r *http.Request) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req CloseRequest
	if !decode(w, r, &req) {
		return
	}
	summary, err := h.service.PrepareClose(r.Context(), id, cashier.ID, *req.CountedCash)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, summary)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req CloseRequest
	if !decode(w, r, &req) {
		return
	}
	sh, summary, err := h.service.CommitClose(r.Context(), id, cashier.ID, *req.CountedCash)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"shift": sh, "summary": summary})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func respondErr(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	respond(w, apperr.HTTPStatus(kind), map[string]string{"error": apperr.Message(err), "kind": string(kind)})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
