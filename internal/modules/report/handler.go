package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes admin report HTTP endpoints. ?format=xlsx downloads a workbook.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Get("/shifts", h.shiftHistory)
		r.Get("/shifts/{id}", h.shiftReport)
		r.Get("/stock", h.stockReport)
		r.Get("/low-stock", h.lowStock)
	})
}

func (h *Handler) shiftHistory(w http.ResponseWriter, r *http.Request) {
	var cashierID *uuid.UUID
	if raw := r.URL.Query().Get("cashier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid cashier id"})
			return
		}
		cashierID = &id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.service.ShiftHistory(r.Context(), cashierID, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, history)
}

func (h *Handler) shiftReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}
	report, err := h.service.ShiftReport(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if wantsXLSX(r) {
		var buf bytes.Buffer
		if err := WriteShiftXLSX(&buf, report); err != nil {
			respondErr(w, err)
			return
		}
		attach(w, fmt.Sprintf("shift-%s.xlsx", id), buf.Bytes())
		return
	}
	respond(w, http.StatusOK, report)
}

func (h *Handler) stockReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.StockReport(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if wantsXLSX(r) {
		var buf bytes.Buffer
		if err := WriteStockXLSX(&buf, report); err != nil {
			respondErr(w, err)
			return
		}
		attach(w, fmt.Sprintf("stock-%s.xlsx", report.Date), buf.Bytes())
		return
	}
	respond(w, http.StatusOK, report)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.LowStock(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func wantsXLSX(r *http.Request) bool { return r.URL.Query().Get("format") == "xlsx" }

// attach buffers the workbook first so a failed render still gets a JSON error.
func attach(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
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
