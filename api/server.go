// Package api serves the HTTP side of CareerBot: payment orders and webhooks,
// the hosted checkout page and transactional email.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"CareerBot/model"

	"github.com/rs/zerolog/log"
)

// TokenVerifier resolves a Firebase ID token to a uid.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error)
	VerifyWebhook(timestamp string, body []byte, signature string) error
	Mode() string
}

type Store interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	RecordPayment(ctx context.Context, p model.Payment) error
}

type Mailer interface {
	Send(ctx context.Context, mail model.Mail) error
}

const maxBodyBytes = 1 << 20

type Server struct {
	store    Store
	auth     TokenVerifier
	payments PaymentGateway
	mailer   Mailer

	mux *http.ServeMux
	srv *http.Server
}

type Option func(*Server)

func WithAuth(v TokenVerifier) Option {
	return func(s *Server) { s.auth = v }
}

func WithPayments(p PaymentGateway) Option {
	return func(s *Server) { s.payments = p }
}

func WithMailer(m Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

func NewServer(store Store, opts ...Option) *Server {
	s := &Server{store: store, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/payments/orders", s.authenticated(s.handleCreateOrder))
	s.mux.HandleFunc("POST /api/payments/webhook", s.handleWebhook)
	s.mux.HandleFunc("GET /checkout/{sessionID}", s.handleCheckout)
	s.mux.HandleFunc("GET "+ReturnPath, s.handleReturn)
	s.mux.HandleFunc("POST /api/email", s.authenticated(s.handleEmail))
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

type uidKey struct{}

// authenticated requires a Firebase ID token in the Authorization header.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeJSON(w, http.StatusServiceUnavailable, failure("Authentication is not configured"))
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, http.StatusUnauthorized, failure("Missing bearer token"))
			return
		}
		uid, err := s.auth.VerifyIDToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("rejected id token")
			writeJSON(w, http.StatusUnauthorized, failure("Invalid token"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), uidKey{}, uid)))
	}
}

func uidFrom(ctx context.Context) string {
	uid, _ := ctx.Value(uidKey{}).(string)
	return uid
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, success(map[string]string{"status": "ok"}))
}
