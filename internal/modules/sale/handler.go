package sale

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Handler exposes sale HTTP endpoints. Sales are created by the till session.
type Handler struct {
	service Service
	loc     *time.Location
}

// NewHandler builds the handler. loc is the store time zone used to resolve ?date=.
func NewHandler(service Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, loc: loc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/sales", func(r chi.Router) {
		r.Get("/mine", h.listMine)
		r.Get("/{id}", h.getByID)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/", h.list)
			r.Post("/{id}/void", h.void)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilter(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	f.CashierName = r.URL.Query().Get("cashier_name")
	h.respondList(w, r, f)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	f, err := h.parseFilter(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	f.CashierID = &cashier.ID
	h.respondList(w, r, f)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, f Filter) {
	sales, err := h.service.List(r.Context(), f)
	if err != nil {
		respondErr(w, err)
		return
	}
	if sales == nil {
		sales = []*Sale{}
	}
	respond(w, http.StatusOK, sales)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid sale id"})
		return
	}
	s, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if s.CashierID != cashier.ID && !cashier.HasRole(auth.RoleAdmin) {
		respondErr(w, apperr.New(apperr.KindForbidden, "sale %s belongs to another cashier", id))
		return
	}
	respond(w, http.StatusOK, s)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid sale id"})
		return
	}
	var req VoidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s, err := h.service.Void(r.Context(), id, req.Reason)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, s)
}

// parseFilter reads ?date=YYYY-MM-DD, ?status= and ?limit=.
func (h *Handler) parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var f Filter
	if d := q.Get("date"); d != "" {
		day, err := time.ParseInLocation("2006-01-02", d, h.loc)
		if err != nil {
			return f, apperr.New(apperr.KindValidation, "date must be YYYY-MM-DD")
		}
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}
	switch s := Status(q.Get("status")); s {
	case "":
	case StatusRegistered, StatusVoided:
		f.Status = s
	default:
		return f, apperr.New(apperr.KindValidation, "unknown status %q", s)
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, apperr.New(apperr.KindValidation, "limit must be a positive number")
		}
		f.Limit = n
	}
	return f, nil
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
