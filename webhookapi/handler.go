package webhookapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"feeflow/esign"
	"feeflow/feeagreement"
)

const maxWebhookBodyBytes = 10 << 20 // envelope documents arrive inline

// EnvelopeProcessor is implemented by feeagreement.WebhookProcessor.
type EnvelopeProcessor interface {
	ProcessEnvelopeUpdate(ctx context.Context, env *esign.Envelope) error
}

// Handler terminates provider webhook deliveries: verifies the HMAC
// signature, decodes the envelope snapshot, and hands it to the processor.
type Handler struct {
	processor EnvelopeProcessor
	secret    string
	log       logrus.FieldLogger
}

func NewHandler(processor EnvelopeProcessor, secret string, log logrus.FieldLogger) *Handler {
	return &Handler{processor: processor, secret: secret, log: log}
}

// Router wires the webhook endpoint plus health and metrics.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhooks/docusign", h.handleEnvelopeUpdate).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// handleEnvelopeUpdate acknowledges every authenticated delivery with 200,
// including ones referencing unknown envelopes; the provider retries anything
// else and an unknown contract id will not become known by retrying.
func (h *Handler) handleEnvelopeUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.WithError(err).Warn("webhook body read failed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.log.Warn("webhook signature verification failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var env esign.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.log.WithError(err).Warn("webhook payload decode failed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.processor.ProcessEnvelopeUpdate(r.Context(), &env); err != nil {
		if errors.Is(err, feeagreement.ErrAgreementNotFound) {
			h.log.WithField("envelope_id", env.EnvelopeID).
				Warn("webhook for unknown envelope acknowledged")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.log.WithError(err).WithField("envelope_id", env.EnvelopeID).
			Error("webhook processing failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
