package model

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

type OrderRequest struct {
	PlanName      string  `json:"planName"`
	Amount        float64 `json:"amount"`
	CustomerID    string  `json:"customerId"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerPhone string  `json:"customerPhone"`
}

type Order struct {
	OrderID          string `json:"orderId"`
	PaymentSessionID string `json:"paymentSessionId"`
}

type Payment struct {
	OrderID   string        `firestore:"order_id"`
	UserID    string        `firestore:"user_id"`
	Plan      string        `firestore:"plan"`
	Amount    float64       `firestore:"amount"`
	Status    PaymentStatus `firestore:"status"`
	UpdatedAt time.Time     `firestore:"updated_at"`
}

type Mail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}
