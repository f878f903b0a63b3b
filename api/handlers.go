package api

import (
	"html/template"
	"io"
	"net/http"
	"regexp"
	"strings"

	"CareerBot/model"
	"CareerBot/repo"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

type orderRequest struct {
	Plan          string `json:"planName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
}

// handleCreateOrder prices the plan server side and opens a Cashfree order for the caller.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		writeJSON(w, http.StatusServiceUnavailable, failure("Payments are not configured"))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Could not read request"))
		return
	}
	var req orderRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Invalid JSON format"))
		return
	}
	plan, ok := model.ParsePlan(req.Plan)
	if !ok {
		writeJSON(w, http.StatusBadRequest, failure("Unknown plan"))
		return
	}

	uid := uidFrom(r.Context())
	email, phone := req.CustomerEmail, req.CustomerPhone
	if u, err := s.store.GetUser(r.Context(), uid); err == nil {
		if email == "" {
			email = u.Email
		}
		if phone == "" {
			phone = u.Phone
		}
	}
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, failure("A phone number is required"))
		return
	}

	amount := model.PlanPrices[plan]
	order, err := s.payments.CreateOrder(r.Context(), model.OrderRequest{
		PlanName:      string(plan),
		Amount:        amount,
		CustomerID:    uid,
		CustomerEmail: email,
		CustomerPhone: phone,
	})
	if err != nil {
		log.Error().Err(err).Str("user", uid).Msg("error creating order")
		writeJSON(w, http.StatusBadGateway, failure("Failed to create order"))
		return
	}
	err = s.store.RecordPayment(r.Context(), model.Payment{
		OrderID: order.OrderID,
		UserID:  uid,
		Plan:    string(plan),
		Amount:  amount,
		Status:  model.PaymentPending,
	})
	if err != nil {
		log.Error().Err(err).Str("order", order.OrderID).Msg("error recording pending payment")
	}
	writeJSON(w, http.StatusOK, success(order))
}

// handleWebhook records payment updates pushed by Cashfree.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		writeJSON(w, http.StatusServiceUnavailable, failure("Payments are not configured"))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Could not read request"))
		return
	}
	ts := r.Header.Get("x-webhook-timestamp")
	sig := r.Header.Get("x-webhook-signature")
	if err := s.payments.VerifyWebhook(ts, body, sig); err != nil {
		log.Warn().Err(err).Msg("rejected webhook")
		writeJSON(w, http.StatusUnauthorized, failure("Invalid signature"))
		return
	}
	p, err := repo.ParseWebhook(body)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable webhook")
		writeJSON(w, http.StatusBadRequest, failure("Invalid webhook payload"))
		return
	}
	if err := s.store.RecordPayment(r.Context(), p); err != nil {
		log.Error().Err(err).Str("order", p.OrderID).Msg("error recording payment")
		writeJSON(w, http.StatusInternalServerError, failure("Failed to record payment"))
		return
	}
	log.Info().Str("order", p.OrderID).Str("status", string(p.Status)).Msg("payment updated")
	writeJSON(w, http.StatusOK, success(nil))
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

var checkoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>CareerBot checkout</title>
<script src="https://sdk.cashfree.com/js/v3/cashfree.js"></script>
</head>
<body>
<p>Redirecting to payment...</p>
<script>
const cashfree = Cashfree({ mode: {{.Mode}} });
cashfree.checkout({ paymentSessionId: {{.SessionID}}, redirectTarget: "_self" });
</script>
</body>
</html>
`))

// handleCheckout serves the page that hands a payment session to the Cashfree SDK.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		http.Error(w, "payments are not configured", http.StatusServiceUnavailable)
		return
	}
	sessionID := r.PathValue("sessionID")
	if !sessionIDPattern.MatchString(sessionID) {
		http.Error(w, "invalid session", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := checkoutPage.Execute(w, struct{ Mode, SessionID string }{s.payments.Mode(), sessionID})
	if err != nil {
		log.Error().Err(err).Msg("error rendering checkout page")
	}
}

// ReturnPath is where Cashfree sends the browser after payment.
const ReturnPath = "/checkout/return"

var returnPage = template.Must(template.New("return").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>CareerBot</title></head>
<body>
<p>Thanks! Your order {{.}} is being confirmed. You can go back to Telegram now.</p>
</body>
</html>
`))

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := returnPage.Execute(w, r.URL.Query().Get("order_id")); err != nil {
		log.Error().Err(err).Msg("error rendering return page")
	}
}

// handleEmail sends a transactional email on behalf of a signed-in user.
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	if s.mailer == nil {
		writeJSON(w, http.StatusServiceUnavailable, failure("Email is not configured"))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Could not read request"))
		return
	}
	var mail model.Mail
	if err := sonic.Unmarshal(body, &mail); err != nil {
		writeJSON(w, http.StatusBadRequest, failure("Invalid JSON format"))
		return
	}
	if len(mail.To) == 0 || strings.TrimSpace(mail.Subject) == "" {
		writeJSON(w, http.StatusBadRequest, failure("Recipient and subject are required"))
		return
	}
	if err := s.mailer.Send(r.Context(), mail); err != nil {
		log.Error().Err(err).Str("user", uidFrom(r.Context())).Msg("error sending email")
		writeJSON(w, http.StatusBadGateway, failure("Failed to send email"))
		return
	}
	writeJSON(w, http.StatusOK, success(nil))
}
