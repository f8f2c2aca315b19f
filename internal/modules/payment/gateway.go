package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Gateway is the provider-agnostic interface every payment adapter must implement.
type Gateway interface {
	// CreatePayment registers the payment with the provider.
	CreatePayment(ctx context.Context, intentID uuid.UUID, amount decimal.Decimal) (*CreateResponse, error)
	// GetPaymentStatus queries the provider for the raw status of a payment.
	GetPaymentStatus(ctx context.Context, providerRef string) (string, error)
}

// GatewayRegistry maps payment methods to their Gateway implementations.
type GatewayRegistry map[Method]Gateway

// ── Till adapter (cash and card) ─────────────────────────────────────────────
// Cash is counted by the cashier and card is charged on the standalone
// terminal, so neither reaches a provider. The adapter only mints a reference.

type tillGateway struct {
	prefix string
}

func NewTillGateway(method Method) Gateway {
	return &tillGateway{prefix: string(method)}
}

func (g *tillGateway) CreatePayment(ctx context.Context, intentID uuid.UUID, amount decimal.Decimal) (*CreateResponse, error) {
	ref := fmt.Sprintf("%s-%s-%04d", g.prefix, time.Now().Format("20060102150405"), rand.Intn(10000))
	return &CreateResponse{ProviderRef: ref, ProviderStatus: "CREATED"}, nil
}

func (g *tillGateway) GetPaymentStatus(ctx context.Context, providerRef string) (string, error) {
	return "", fmt.Errorf("%s payments are confirmed at the till", strings.ToLower(g.prefix))
}

// ── Wallet adapter ───────────────────────────────────────────────────────────
// Scan-to-pay wallet. The customer approves on their phone; the till polls.
//
//   POST {base}/payments        {external_reference, amount} → {id, status, qr_data}
//   GET  {base}/payments/{id}   → {id, status}

var ErrGatewayUnavailable = errors.New("wallet gateway unavailable")

type walletGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewWalletGateway(baseURL, apiKey string, client *http.Client) Gateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "wallet-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &walletGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		breaker: breaker,
	}
}

type walletPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	QRData string `json:"qr_data,omitempty"`
}

func (g *walletGateway) CreatePayment(ctx context.Context, intentID uuid.UUID, amount decimal.Decimal) (*CreateResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"external_reference": intentID.String(),
		"amount":             amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	raw, err := g.do(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		return nil, err
	}
	var resp walletPayment
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode wallet response: %w", err)
	}
	if resp.ID == "" {
		return nil, errors.New("wallet response has no payment id")
	}
	return &CreateResponse{
		ProviderRef:    resp.ID,
		ProviderStatus: resp.Status,
		QRPayload:      resp.QRData,
		Message:        "Show the QR code to the customer and wait for approval.",
	}, nil
}

func (g *walletGateway) GetPaymentStatus(ctx context.Context, providerRef string) (string, error) {
	raw, err := g.do(ctx, http.MethodGet, "/payments/"+providerRef, nil)
	if err != nil {
		return "", err
	}
	var resp walletPayment
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode wallet response: %w", err)
	}
	return resp.Status, nil
}

func (g *walletGateway) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	raw, err := g.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}

		res, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= 300 {
			return nil, fmt.Errorf("wallet %s %s: status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return raw, err
}

// NormaliseStatus maps a provider status to the intent lifecycle.
// Anything unrecognised is still pending.
func NormaliseStatus(providerStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved", "completado", "accredited", "paid", "successful", "completed":
		return StatusApproved
	case "rejected", "cancelled", "canceled", "expired", "failed", "refunded":
		return StatusRejected
	default:
		return StatusAwaitingApproval
	}
}
