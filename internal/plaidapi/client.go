package plaidapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eugenenazirov/budgr/internal/config"
)

const (
	defaultTimeout = 30 * time.Second
	meterName      = "github.com/eugenenazirov/budgr/internal/plaidapi"

	operationCreateLinkToken  = "link_token_create"
	operationListInstitutions = "institutions_get"
)

// Options configures NewClient.
type Options struct {
	ClientID    string
	Secret      string
	Environment config.Environment
	// BaseURL replaces the environment host when set.
	BaseURL       string
	Timeout       time.Duration
	Transport     http.RoundTripper
	MeterProvider metric.MeterProvider
}

// SDKClient implements Client on top of the official Plaid SDK.
type SDKClient struct {
	api     *plaid.APIClient
	host    string
	metrics *clientMetrics
}

// NewClient creates a Plaid client for the configured environment.
func NewClient(opts Options) (*SDKClient, error) {
	host, err := resolveHost(opts.Environment, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	provider := opts.MeterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	metrics, err := newClientMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", opts.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", opts.Secret)
	configuration.UseEnvironment(plaid.Environment(host))
	configuration.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport, otelhttp.WithMeterProvider(provider)),
	}

	return &SDKClient{
		api:     plaid.NewAPIClient(configuration),
		host:    host,
		metrics: metrics,
	}, nil
}

// Host returns the Plaid base URL requests are sent to.
func (c *SDKClient) Host() string {
	return c.host
}

// CreateLinkToken creates a short-lived link token for req.
func (c *SDKClient) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (string, error) {
	sdkReq, apiErr := req.sdkRequest()
	if apiErr != nil {
		return "", apiErr
	}

	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*sdkReq).Execute()
	if err != nil {
		failure := translateError(err, httpResp)
		c.metrics.record(ctx, operationCreateLinkToken, start, failure)
		return "", failure
	}

	token := resp.GetLinkToken()
	if token == "" {
		failure := &APIError{
			StatusCode: http.StatusBadGateway,
			Message:    "plaid returned an empty link token",
			Reason:     ReasonInvalidResponse,
		}
		c.metrics.record(ctx, operationCreateLinkToken, start, failure)
		return "", failure
	}

	c.metrics.record(ctx, operationCreateLinkToken, start, nil)
	return token, nil
}

// ListInstitutions returns institutions in the order Plaid lists them.
func (c *SDKClient) ListInstitutions(ctx context.Context, query InstitutionsQuery) ([]Institution, error) {
	sdkReq, apiErr := query.sdkRequest()
	if apiErr != nil {
		return nil, apiErr
	}

	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.InstitutionsGet(ctx).InstitutionsGetRequest(*sdkReq).Execute()
	if err != nil {
		failure := translateError(err, httpResp)
		c.metrics.record(ctx, operationListInstitutions, start, failure)
		return nil, failure
	}

	upstream := resp.GetInstitutions()
	institutions := make([]Institution, 0, len(upstream))
	for _, inst := range upstream {
		institutions = append(institutions, Institution{
			ID:   inst.GetInstitutionId(),
			Name: inst.GetName(),
		})
	}

	c.metrics.record(ctx, operationListInstitutions, start, nil)
	return institutions, nil
}

func resolveHost(env config.Environment, baseURL string) (string, error) {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		return baseURL, nil
	}
	switch env {
	case config.EnvironmentSandbox, "":
		return string(plaid.Sandbox), nil
	case config.EnvironmentProduction:
		return string(plaid.Production), nil
	default:
		return "", config.ErrUnknownEnvironment
	}
}

type clientMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	requests, err := meter.Int64Counter("plaid.requests",
		metric.WithDescription("Plaid API calls by operation and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create plaid.requests counter: %w", err)
	}
	duration, err := meter.Float64Histogram("plaid.request.duration",
		metric.WithDescription("Plaid API call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create plaid.request.duration histogram: %w", err)
	}
	return &clientMetrics{requests: requests, duration: duration}, nil
}

func (m *clientMetrics) record(ctx context.Context, operation string, start time.Time, apiErr *APIError) {
	outcome := "success"
	reason := ""
	if apiErr != nil {
		outcome = "error"
		reason = apiErr.Reason
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

var _ Client = (*SDKClient)(nil)
