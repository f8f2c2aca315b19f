package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		// List everything, or search with ?q=
		r.Get("/", h.listProducts)
		r.Get("/barcode/{code}", h.getByBarcode)
		r.Get("/{id}", h.getProduct)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		products, err := h.service.Search(r.Context(), q, limit)
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, products)
		return
	}
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, products)
}

func (h *Handler) getByBarcode(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.LookupByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, p)
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
