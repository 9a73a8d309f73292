package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hanane-support/H-ATS/internal/constant"
	"github.com/hanane-support/H-ATS/internal/entity"
	"github.com/hanane-support/H-ATS/internal/infrastructure"
	"github.com/sirupsen/logrus"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	defaultMaxBodyBytes int64 = 64 << 10
)

type AlertHandler interface {
	Handle(ctx context.Context, payload map[string]any, remoteIP string) entity.WebhookOutcome
}

type WebhookResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type Handler struct {
	service      AlertHandler
	path         string
	maxBodyBytes int64
}

func NewWebhookHTTPHandler(service AlertHandler, path string, maxBodyBytes int64) *Handler {
	if strings.TrimSpace(path) == "" {
		path = constant.DefaultWebhookPath
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	return &Handler{service: service, path: path, maxBodyBytes: maxBodyBytes}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(h.path, h.ReceiveAlert)
}

// ReceiveAlert accepts a TradingView alert body and runs it through the order pipeline.
func (h *Handler) ReceiveAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, WebhookResponse{Status: statusError, Message: "method not allowed"})
		return
	}

	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, WebhookResponse{Status: statusError, Message: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Status: statusError, Message: "unable to read request body"})
		return
	}

	payload, err := decodePayload(body)
	if err != nil {
		logrus.WithField("remote_addr", infrastructure.ClientIP(r)).Warnf("invalid webhook body: %v", err)
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Status: statusError, Message: "invalid json body"})
		return
	}

	// the order must complete even if TradingView drops the connection
	outcome := h.service.Handle(context.WithoutCancel(r.Context()), payload, infrastructure.ClientIP(r))

	resp := WebhookResponse{
		Status:    statusSuccess,
		Message:   outcome.Message,
		RequestID: outcome.RequestID,
	}
	if !outcome.Accepted || outcome.Result == nil || !outcome.Result.Success {
		resp.Status = statusError
	}

	writeJSON(w, http.StatusOK, resp)
}

func decodePayload(body []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("payload must be a json object")
	}

	return payload, nil
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
