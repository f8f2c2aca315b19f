package pos

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/cart"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Handler exposes the till of the signed-in cashier.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/pos", func(r chi.Router) {
		r.Post("/session", h.begin)                            // POST   /api/v1/pos/session
		r.Get("/session", h.state)                             // GET    /api/v1/pos/session
		r.Delete("/session", h.end)                            // DELETE /api/v1/pos/session
		r.Get("/cart", h.cart)                                 // GET    /api/v1/pos/cart
		r.Post("/cart/items", h.addItem)                       // POST   /api/v1/pos/cart/items
		r.Patch("/cart/items/{productId}", h.setQuantity)      // PATCH  /api/v1/pos/cart/items/{id}
		r.Delete("/cart/items/{productId}", h.removeItem)      // DELETE /api/v1/pos/cart/items/{id}
		r.Delete("/cart", h.clearCart)                         // DELETE /api/v1/pos/cart
		r.Get("/products/search", h.search)                    // GET    /api/v1/pos/products/search?q=
		r.Post("/pay", h.pay)                                  // POST   /api/v1/pos/pay
		r.Get("/payment", h.payment)                           // GET    /api/v1/pos/payment
		r.Delete("/payment", h.leavePayment)                   // DELETE /api/v1/pos/payment
		r.Post("/payment/confirm", h.confirmPayment)           // POST   /api/v1/pos/payment/confirm
		r.Post("/payment/cancel", h.cancelPayment)             // POST   /api/v1/pos/payment/cancel
		r.Post("/payment/check", h.checkPayment)               // POST   /api/v1/pos/payment/check
	})
}

// ── session ──────────────────────────────────────────────────────────────────

func (h *Handler) begin(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, h.service.Begin(*cashier))
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	st, err := h.service.State(cashier.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, st)
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	h.service.End(cashier.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ── cart ─────────────────────────────────────────────────────────────────────

func (h *Handler) cart(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Cart(cashier.ID)
	respondCart(w, snap, err)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		snap cart.Snapshot
		err  error
	)
	if req.ProductID != "" {
		snap, err = h.service.AddProduct(r.Context(), cashier.ID, req.ProductID)
	} else {
		snap, err = h.service.AddByCode(r.Context(), cashier.ID, req.Code)
	}
	respondCart(w, snap, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	var req SetQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.service.SetQuantity(cashier.ID, productID, req.Quantity)
	respondCart(w, snap, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.RemoveItem(cashier.ID, productID)
	respondCart(w, snap, err)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	snap, err := h.service.ClearCart(cashier.ID)
	respondCart(w, snap, err)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, products)
}

// ── payment ──────────────────────────────────────────────────────────────────

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	var req PayRequest
	if !decode(w, r, &req) {
		return
	}
	method, ok := payment.ParseMethod(req.Method)
	if !ok {
		respond(w, http.StatusBadRequest, map[string]string{"error": "unknown payment method: " + req.Method})
		return
	}
	res := h.service.Pay(r.Context(), cashier.ID, method, PayParams{AmountReceived: req.AmountReceived})
	respondResult(w, res)
}

func (h *Handler) payment(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	st, err := h.service.State(cashier.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"intent":      st.Intent,
		"polling":     st.Polling,
		"last_result": st.Last,
	})
}

func (h *Handler) leavePayment(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	if err := h.service.LeavePayment(cashier.ID); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	respondResult(w, h.service.ConfirmPayment(r.Context(), cashier.ID))
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	respondResult(w, h.service.CancelPayment(r.Context(), cashier.ID, req.Reason))
}

func (h *Handler) checkPayment(w http.ResponseWriter, r *http.Request) {
	cashier, ok := signedIn(w, r)
	if !ok {
		return
	}
	respondResult(w, h.service.CheckPayment(r.Context(), cashier.ID))
}

// ── helpers ──────────────────────────────────────────────────────────────────

func signedIn(w http.ResponseWriter, r *http.Request) (*auth.Cashier, bool) {
	cashier := auth.CashierFromContext(r.Context())
	if cashier == nil {
		respondErr(w, apperr.New(apperr.KindUnauthorized, "not signed in"))
		return nil, false
	}
	return cashier, true
}

func parseProductID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
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

// respondCart answers a cart edit. A refused edit still carries the unchanged cart.
func respondCart(w http.ResponseWriter, snap cart.Snapshot, err error) {
	if err != nil {
		kind := apperr.KindOf(err)
		respond(w, apperr.HTTPStatus(kind), map[string]interface{}{
			"error": apperr.Message(err),
			"kind":  string(kind),
			"cart":  snap,
		})
		return
	}
	respond(w, http.StatusOK, snap)
}

func respondResult(w http.ResponseWriter, res Result) {
	status := http.StatusOK
	switch res.Outcome {
	case OutcomeAwaitingApproval:
		status = http.StatusAccepted
	case OutcomeFailed:
		status = apperr.HTTPStatus(res.Kind)
	}
	respond(w, status, res)
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
