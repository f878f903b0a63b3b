package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"CareerBot/model"
	"CareerBot/repo"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "cf_secret"

type fakeVerifier map[string]string

func (v fakeVerifier) VerifyIDToken(ctx context.Context, token string) (string, error) {
	uid, ok := v[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return uid, nil
}

// fakeGateway keeps the real webhook verification and stubs order creation.
type fakeGateway struct {
	*repo.Cashfree
	mu     sync.Mutex
	orders []model.OrderRequest
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, req)
	return &model.Order{OrderID: "order_1", PaymentSessionID: "session_abc"}, nil
}

type fakeMailer struct {
	sent []model.Mail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, mail model.Mail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *repo.MemoryStore, *fakeGateway, *fakeMailer) {
	t.Helper()
	store := repo.NewMemoryStore()
	gw := &fakeGateway{Cashfree: repo.NewCashfree("app", webhookSecret, false, "")}
	mailer := &fakeMailer{}
	srv := NewServer(store,
		WithAuth(fakeVerifier{"good-token": "uid_1"}),
		WithPayments(gw),
		WithMailer(mailer),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store, gw, mailer
}

func do(t *testing.T, method, url, token, body string, headers map[string]string) (int, Response) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out Response
	require.NoError(t, sonic.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func sign(ts, body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHealth(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	code, resp := do(t, http.MethodGet, ts.URL+"/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, statusOK, resp.Status)
}

func TestCreateOrderRequiresToken(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	code, resp := do(t, http.MethodPost, ts.URL+"/api/payments/orders", "", `{"planName":"basic"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, statusError, resp.Status)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/payments/orders", "forged", `{"planName":"basic"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateOrderPricesPlanServerSide(t *testing.T) {
	ts, store, gw, _ := newTestServer(t)
	require.NoError(t, store.UpsertProfile(context.Background(), "uid_1", model.Profile{Name: "Asha", Email: "a@example.com", Phone: "9876543210"}))

	code, resp := do(t, http.MethodPost, ts.URL+"/api/payments/orders", "good-token", `{"planName":"parent","amount":1}`, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Len(t, gw.orders, 1)
	assert.Equal(t, 249.0, gw.orders[0].Amount)
	assert.Equal(t, "uid_1", gw.orders[0].CustomerID)
	assert.Equal(t, "9876543210", gw.orders[0].CustomerPhone)

	updates, err := store.WatchPayment(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, (<-updates).Status)
}

func TestCreateOrderValidation(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	code, resp := do(t, http.MethodPost, ts.URL+"/api/payments/orders", "good-token", `{"planName":"gold"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Unknown plan", resp.Message)

	code, resp = do(t, http.MethodPost, ts.URL+"/api/payments/orders", "good-token", `{"planName":"basic"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "A phone number is required", resp.Message)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/payments/orders", "good-token", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

const paidWebhook = `{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"order_9","order_amount":199,"order_tags":{"plan":"student","user_id":"uid_1"}},"payment":{"payment_status":"SUCCESS"}}}`

func TestWebhookActivatesPlan(t *testing.T) {
	ts, store, _, _ := newTestServer(t)
	code, _ := do(t, http.MethodPost, ts.URL+"/api/payments/webhook", "", paidWebhook, map[string]string{
		"x-webhook-timestamp": "1700000000",
		"x-webhook-signature": sign("1700000000", paidWebhook),
	})
	require.Equal(t, http.StatusOK, code)

	u, err := store.GetUser(context.Background(), "uid_1")
	require.NoError(t, err)
	assert.True(t, u.IsSubscribed)
	assert.Equal(t, model.PlanStudent, u.SubscriptionModel)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ts, store, _, _ := newTestServer(t)
	code, _ := do(t, http.MethodPost, ts.URL+"/api/payments/webhook", "", paidWebhook, map[string]string{
		"x-webhook-timestamp": "1700000000",
		"x-webhook-signature": sign("1700000001", paidWebhook),
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	_, err := store.GetUser(context.Background(), "uid_1")
	assert.ErrorIs(t, err, model.ErrUserDoesNotExist)
}

func TestCheckoutPage(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/checkout/session_abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"session_abc"`)
	assert.Contains(t, string(raw), `"sandbox"`)

	resp2, err := http.Get(ts.URL + "/checkout/%3Cscript%3E")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestEmail(t *testing.T) {
	ts, _, _, mailer := newTestServer(t)
	code, _ := do(t, http.MethodPost, ts.URL+"/api/email", "good-token", `{"to":["x@example.com"],"subject":"Hi","body":"Hello"}`, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Hi", mailer.sent[0].Subject)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/email", "good-token", `{"subject":"Hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	mailer.err = errors.New("smtp down")
	code, _ = do(t, http.MethodPost, ts.URL+"/api/email", "good-token", `{"to":["x@example.com"],"subject":"Hi"}`, nil)
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestUnconfiguredServer(t *testing.T) {
	ts := httptest.NewServer(NewServer(repo.NewMemoryStore()).Handler())
	defer ts.Close()
	code, _ := do(t, http.MethodPost, ts.URL+"/api/email", "any", `{}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = do(t, http.MethodPost, ts.URL+"/api/payments/webhook", "", paidWebhook, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReturnPageEscapesOrderID(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + ReturnPath + "?order_id=%3Cb%3E")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "&lt;b&gt;")
}
