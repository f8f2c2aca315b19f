package pos_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/pos"
	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) router(signedIn bool) http.Handler {
	r := chi.NewRouter()
	if signedIn {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				c := f.cashier
				next.ServeHTTP(w, req.WithContext(auth.WithCashier(req.Context(), &c)))
			})
		})
	}
	pos.NewHandler(f.svc).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CashCheckout(t *testing.T) {
	f := newFixture(t)
	h := f.router(true)

	rec := do(t, h, http.MethodPost, "/api/v1/pos/cart/items", `{"code":"7790001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPatch, "/api/v1/pos/cart/items/"+f.coffee.ID.String(), `{"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/pos/pay", `{"method":"efectivo","amount_received":"250"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var res pos.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pos.OutcomeAwaitingApproval, res.Outcome)
	assert.Equal(t, "50", res.Change.String())

	rec = do(t, h, http.MethodPost, "/api/v1/pos/payment/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pos.OutcomeApproved, res.Outcome)
	assert.Equal(t, "200", res.Sale.Total.String())
	assert.Equal(t, 8, f.store.Stock(f.coffee.ID))
}

func TestHandler_FailuresCarryKind(t *testing.T) {
	f := newFixture(t)
	h := f.router(true)
	do(t, h, http.MethodPost, "/api/v1/pos/cart/items", `{"product_id":"`+f.coffee.ID.String()+`"}`)

	rec := do(t, h, http.MethodPost, "/api/v1/pos/pay", `{"method":"cash","amount_received":"10"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var res pos.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, apperr.KindInsufficientPayment, res.Kind)
	assert.True(t, res.Retry)

	rec = do(t, h, http.MethodPost, "/api/v1/pos/pay", `{"method":"cheque"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/pos/cart/items", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the pending cash intent pins the cart
	rec = do(t, h, http.MethodDelete, "/api/v1/pos/cart", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cart"`)

	rec = do(t, h, http.MethodPost, "/api/v1/pos/payment/cancel", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodDelete, "/api/v1/pos/cart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_RequiresCashier(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.router(false), http.MethodGet, "/api/v1/pos/cart", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_SessionLifecycle(t *testing.T) {
	f := newFixture(t)
	h := f.router(true)

	rec := do(t, h, http.MethodDelete, "/api/v1/pos/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/pos/cart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/pos/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st pos.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, f.cashier.ID, st.CashierID)
}
