package repo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"CareerBot/model"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	cashfreeSandboxURL    = "https://sandbox.cashfree.com/pg"
	cashfreeProductionURL = "https://api.cashfree.com/pg"
	cashfreeAPIVersion    = "2023-08-01"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Cashfree is a minimal client for the Cashfree PG orders API.
type Cashfree struct {
	AppID     string
	SecretKey string
	BaseURL   string
	ReturnURL string
	client    *http.Client
}

func NewCashfree(appID, secretKey string, production bool, returnURL string) *Cashfree {
	base := cashfreeSandboxURL
	if production {
		base = cashfreeProductionURL
	}
	return &Cashfree{
		AppID:     appID,
		SecretKey: secretKey,
		BaseURL:   base,
		ReturnURL: returnURL,
		client:    &http.Client{Timeout: 20 * time.Second},
	}
}

// Mode is the checkout SDK mode matching BaseURL.
func (c *Cashfree) Mode() string {
	if c.BaseURL == cashfreeProductionURL {
		return "production"
	}
	return "sandbox"
}

type cashfreeCustomer struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

type cashfreeOrderRequest struct {
	OrderID       string            `json:"order_id"`
	OrderAmount   float64           `json:"order_amount"`
	OrderCurrency string            `json:"order_currency"`
	Customer      cashfreeCustomer  `json:"customer_details"`
	OrderMeta     map[string]string `json:"order_meta,omitempty"`
	OrderTags     map[string]string `json:"order_tags,omitempty"`
	OrderNote     string            `json:"order_note,omitempty"`
}

type cashfreeOrderResponse struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	Message          string `json:"message"`
}

// CreateOrder opens an INR order for req and returns the checkout session.
func (c *Cashfree) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	if req.CustomerID == "" || req.CustomerPhone == "" {
		return nil, fmt.Errorf("customer id and phone are required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	body := cashfreeOrderRequest{
		OrderID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		OrderAmount:   req.Amount,
		OrderCurrency: "INR",
		Customer: cashfreeCustomer{
			CustomerID:    req.CustomerID,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
		},
		OrderTags: map[string]string{"plan": req.PlanName, "user_id": req.CustomerID},
		OrderNote: req.PlanName + " subscription",
	}
	if c.ReturnURL != "" {
		body.OrderMeta = map[string]string{"return_url": c.ReturnURL + "?order_id={order_id}"}
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.AppID)
	httpReq.Header.Set("x-client-secret", c.SecretKey)
	httpReq.Header.Set("x-api-version", cashfreeAPIVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error creating order: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading order response: %w", err)
	}

	var out cashfreeOrderResponse
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("error decoding order response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cashfree returned %d: %s", resp.StatusCode, out.Message)
	}
	log.Info().Str("order", out.OrderID).Str("plan", req.PlanName).Msg("order created")
	return &model.Order{OrderID: out.OrderID, PaymentSessionID: out.PaymentSessionID}, nil
}

// VerifyWebhook checks base64(HMAC-SHA256(timestamp + body)) against signature.
func (c *Cashfree) VerifyWebhook(timestamp string, body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

type webhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID     string            `json:"order_id"`
			OrderAmount float64           `json:"order_amount"`
			OrderTags   map[string]string `json:"order_tags"`
		} `json:"order"`
		Payment struct {
			PaymentStatus string `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// ParseWebhook maps a payment webhook body to the Payment it reports.
func ParseWebhook(body []byte) (model.Payment, error) {
	var env webhookEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return model.Payment{}, fmt.Errorf("error decoding webhook: %w", err)
	}
	if env.Data.Order.OrderID == "" {
		return model.Payment{}, fmt.Errorf("webhook without order id")
	}
	status := model.PaymentPending
	switch strings.ToUpper(env.Data.Payment.PaymentStatus) {
	case "SUCCESS":
		status = model.PaymentPaid
	case "FAILED", "USER_DROPPED", "CANCELLED":
		status = model.PaymentFailed
	}
	return model.Payment{
		OrderID:   env.Data.Order.OrderID,
		UserID:    env.Data.Order.OrderTags["user_id"],
		Plan:      env.Data.Order.OrderTags["plan"],
		Amount:    env.Data.Order.OrderAmount,
		Status:    status,
		UpdatedAt: time.Now(),
	}, nil
}
