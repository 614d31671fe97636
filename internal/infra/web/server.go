package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"onepay-payment-adapter/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"onepay-payment-adapter/internal/infra/logging"
	"onepay-payment-adapter/internal/usecase"
)

// Server exposes the provider-facing callback routes. Per the provider's
// retry contract every callback is acknowledged, whatever the validation
// outcome; failure detail goes to the operator log only and the payer is
// always sent to the generic processing page.
type Server struct {
	payUC      usecase.PaymentUseCase
	notifUC    usecase.NotificationUseCase
	processURL string
	log        *zerolog.Logger
}

func NewServer(payUC usecase.PaymentUseCase, notifUC usecase.NotificationUseCase, processURL string, logger *zerolog.Logger) *Server {
	if processURL == "" {
		processURL = "/payment/process"
	}
	return &Server{payUC: payUC, notifUC: notifUC, processURL: processURL, log: logger}
}

// Router builds the callback routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/v1/payments", s.handleInitiate)

	r.Get("/payment/onepay/return", s.handleReturn)
	r.Post("/payment/onepay/return", s.handleReturn)
	r.Post("/payment/onepay/ipn", s.handleIPN)
	r.Post("/payment/onepay/notification", s.handleAsync)
	r.Get("/payment/onepay/cancel", s.handleCancel)

	r.Get("/payment/process", s.handleProcess)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type initiateRequest struct {
	AcquirerID string  `json:"acquirer_id"`
	Reference  string  `json:"reference"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	ReturnURL  string  `json:"return_url"`
}

// handleInitiate builds the signed provider field set for the order flow to
// form-encode and submit.
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	t, fields, action, err := s.payUC.Initiate(r.Context(), req.AcquirerID, req.Reference, req.Amount, req.Currency, req.ReturnURL)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrConfiguration) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Unknown acquirer", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to initiate payment", http.StatusInternalServerError)
		return
	}

	response := struct {
		TransactionID string            `json:"transaction_id"`
		Action        string            `json:"action"`
		Fields        map[string]string `json:"fields"`
	}{
		TransactionID: t.ID,
		Action:        action,
		Fields:        fields,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(response)
}

// handleReturn is the browser-redirect (DPN) route. A CANCELLED authResult
// is not fed to the validator at all; everything else is, but the payer is
// redirected to the processing page regardless.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	fields := fieldsFromRequest(r)
	r = r.WithContext(s.callbackCtx(r, fields))
	logging.With(r.Context(), s.log).Info().Msg("return callback received")

	if fields["authResult"] != "CANCELLED" {
		s.process(r, fields)
	}
	http.Redirect(w, r, s.processURL, http.StatusSeeOther)
}

// handleIPN is the server-to-server notification route. The empty 200
// response is the acknowledgment the provider expects.
func (s *Server) handleIPN(w http.ResponseWriter, r *http.Request) {
	fields := fieldsFromRequest(r)
	r = r.WithContext(s.callbackCtx(r, fields))
	logging.With(r.Context(), s.log).Info().Msg("ipn received")

	s.process(r, fields)
	w.WriteHeader(http.StatusOK)
}

// handleAsync is the eventCode/success ping; state-consistency check only.
func (s *Server) handleAsync(w http.ResponseWriter, r *http.Request) {
	fields := fieldsFromRequest(r)
	s.notifUC.HandleAsync(r.Context(), fields)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("[accepted]"))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.processURL, http.StatusSeeOther)
}

func (s *Server) handleProcess(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Your payment is being processed.\n"))
}

// callbackCtx tags the request context with the trace id and merchant
// reference so downstream log lines correlate.
func (s *Server) callbackCtx(r *http.Request, fields map[string]string) context.Context {
	ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
	return logging.WithReference(ctx, fields["vpc_MerchTxnRef"])
}

// process runs the validator; rejections are operator-log-only and must not
// leak to the response, which always acknowledges receipt.
func (s *Server) process(r *http.Request, fields map[string]string) {
	log := logging.With(r.Context(), s.log)
	t, mismatches, err := s.notifUC.HandleNotification(r.Context(), fields)
	if err != nil {
		log.Warn().Err(err).Msg("notification rejected")
		return
	}
	if len(mismatches) > 0 {
		log.Warn().
			Int("mismatches", len(mismatches)).
			Str("state", string(t.State)).
			Msg("notification accepted with field mismatches")
	}
}

func fieldsFromRequest(r *http.Request) map[string]string {
	_ = r.ParseForm()
	fields := make(map[string]string, len(r.Form))
	for k, vs := range r.Form {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields
}
