package repo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"CareerBot/model"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	var got cashfreeOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "app", r.Header.Get("x-client-id"))
		assert.Equal(t, "secret", r.Header.Get("x-client-secret"))
		assert.Equal(t, cashfreeAPIVersion, r.Header.Get("x-api-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"order_id":"` + got.OrderID + `","payment_session_id":"sess_1"}`))
	}))
	defer srv.Close()

	c := NewCashfree("app", "secret", false, "https://example.com/return")
	c.BaseURL = srv.URL

	order, err := c.CreateOrder(context.Background(), model.OrderRequest{
		PlanName: "student", Amount: 199, CustomerID: "tg_1", CustomerPhone: "9876543210",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess_1", order.PaymentSessionID)
	assert.Equal(t, got.OrderID, order.OrderID)
	assert.Equal(t, "INR", got.OrderCurrency)
	assert.Equal(t, "student", got.OrderTags["plan"])
	assert.Equal(t, "tg_1", got.OrderTags["user_id"])
}

func TestCreateOrderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"customer_phone invalid"}`))
	}))
	defer srv.Close()

	c := NewCashfree("app", "secret", false, "")
	c.BaseURL = srv.URL
	_, err := c.CreateOrder(context.Background(), model.OrderRequest{Amount: 99, CustomerID: "x", CustomerPhone: "1"})
	assert.ErrorContains(t, err, "customer_phone invalid")

	_, err = c.CreateOrder(context.Background(), model.OrderRequest{Amount: 99})
	assert.Error(t, err)
}

func sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	c := NewCashfree("app", "secret", true, "")
	assert.Equal(t, "production", c.Mode())
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)

	assert.NoError(t, c.VerifyWebhook("1700000000", body, sign("secret", "1700000000", body)))
	assert.ErrorIs(t, c.VerifyWebhook("1700000001", body, sign("secret", "1700000000", body)), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifyWebhook("1700000000", body, sign("other", "1700000000", body)), ErrInvalidSignature)
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{
		"order":{"order_id":"order_1","order_amount":249,"order_tags":{"plan":"parent","user_id":"tg_5"}},
		"payment":{"payment_status":"SUCCESS"}}}`)
	p, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "order_1", p.OrderID)
	assert.Equal(t, "tg_5", p.UserID)
	assert.Equal(t, "parent", p.Plan)
	assert.Equal(t, model.PaymentPaid, p.Status)

	_, err = ParseWebhook([]byte(`{"data":{}}`))
	assert.Error(t, err)
}
