package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/budgr/internal/plaidapi"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Settings carries the fixed values every outbound Plaid request is built from.
type Settings struct {
	Environment             string
	Link                    plaidapi.LinkIdentity
	InstitutionCountryCodes []string
	InstitutionsCount       int
	InstitutionsOffset      int
}

// Handler wires the Plaid client into HTTP handlers.
type Handler struct {
	client   plaidapi.Client
	settings Settings
	logger   *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHandlerLogger sets the logger used to report Plaid failures.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(client plaidapi.Client, settings Settings, opts ...HandlerOption) *Handler {
	h := &Handler{
		client:   client,
		settings: settings,
		logger:   zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:      "ok",
		Environment: h.settings.Environment,
		Timestamp:   h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	req := plaidapi.NewLinkTokenRequest(h.settings.Link)

	token, err := h.client.CreateLinkToken(r.Context(), req)
	if err != nil {
		h.writeUpstreamError(w, r, "create link token", err)
		return
	}

	noCache(w)
	writeJSON(w, http.StatusOK, linkTokenResponse{LinkToken: token})
}

func (h *Handler) handleListInstitutions(w http.ResponseWriter, r *http.Request) {
	query := plaidapi.NewInstitutionsQuery(
		h.settings.InstitutionCountryCodes,
		h.settings.InstitutionsCount,
		h.settings.InstitutionsOffset,
	)

	institutions, err := h.client.ListInstitutions(r.Context(), query)
	if err != nil {
		h.writeUpstreamError(w, r, "list institutions", err)
		return
	}

	resp := make([]institutionResponse, 0, len(institutions))
	for _, inst := range institutions {
		resp = append(resp, institutionResponse{Name: inst.Name, ID: inst.ID})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeUpstreamError renders any Plaid failure as the error envelope with a
// 500 status, whatever the upstream status was.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	apiErr, ok := plaidapi.AsAPIError(err)
	if !ok {
		apiErr = &plaidapi.APIError{
			StatusCode: http.StatusInternalServerError,
			Message:    err.Error(),
			Reason:     http.StatusText(http.StatusInternalServerError),
		}
	}

	h.logger.Warn("plaid call failed",
		zap.String("operation", operation),
		zap.Int("status_code", apiErr.StatusCode),
		zap.String("reason", apiErr.Reason),
		zap.String("request_id", requestIDFromContext(r.Context())),
	)

	writeJSON(w, http.StatusInternalServerError, newAPIErrorEnvelope(apiErr))
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type linkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

type institutionResponse struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type healthResponse struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type apiErrorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Reason     string `json:"reason"`
}

func newAPIErrorEnvelope(apiErr *plaidapi.APIError) apiErrorEnvelope {
	return apiErrorEnvelope{Error: apiErrorBody{
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
		Reason:     apiErr.Reason,
	}}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

// noCache keeps link tokens out of shared caches.
func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
