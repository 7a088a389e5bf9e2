package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/budgr/internal/api"
	"github.com/eugenenazirov/budgr/internal/config"
	"github.com/eugenenazirov/budgr/internal/plaidapi"
	"github.com/eugenenazirov/budgr/internal/telemetry"
	"github.com/eugenenazirov/budgr/internal/web"
)

const serviceName = "budgr"

// App encapsulates the application dependencies and HTTP server.
type App struct {
	client    plaidapi.Client
	handler   *api.Handler
	router    http.Handler
	telemetry *telemetry.Provider
	logger    *zap.Logger
	server    *http.Server
}

// Option customises New, primarily for tests.
type Option func(*options)

type options struct {
	client plaidapi.Client
}

// WithClient replaces the Plaid SDK client.
func WithClient(client plaidapi.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	settings := SettingsFromConfig(cfg)
	if err := plaidapi.NewLinkTokenRequest(settings.Link).Validate(); err != nil {
		return nil, fmt.Errorf("invalid link token settings: %w", err)
	}
	query := plaidapi.NewInstitutionsQuery(settings.InstitutionCountryCodes, settings.InstitutionsCount, settings.InstitutionsOffset)
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid institutions settings: %w", err)
	}

	var provider *telemetry.Provider
	if cfg.EnableMetrics {
		var err error
		provider, err = telemetry.New(telemetry.Config{
			ServiceName: serviceName,
			Environment: cfg.Plaid.Environment.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	client := o.client
	if client == nil {
		clientOpts := plaidapi.Options{
			ClientID:    cfg.Plaid.ClientID,
			Secret:      cfg.Plaid.Secret,
			Environment: cfg.Plaid.Environment,
			BaseURL:     cfg.Plaid.BaseURL,
			Timeout:     cfg.Plaid.Timeout,
		}
		if provider != nil {
			clientOpts.MeterProvider = provider.MeterProvider()
		}
		sdkClient, err := plaidapi.NewClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create plaid client: %w", err)
		}
		logger.Info("plaid client configured",
			zap.String("environment", cfg.Plaid.Environment.String()),
			zap.String("host", sdkClient.Host()),
		)
		client = sdkClient
	}

	if !cfg.Plaid.HasCredentials() {
		logger.Warn("PLAID_CLIENT_ID or PLAID_SECRET is empty; Plaid calls will be rejected")
	}

	handler := api.NewHandler(client, settings, api.WithHandlerLogger(logger))
	routerOpts := []api.RouterOption{
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	var metricsHandler http.Handler
	if provider != nil {
		routerOpts = append(routerOpts, api.WithMeterProvider(provider.MeterProvider()))
		metricsHandler = provider.Handler()
	}
	apiRouter := api.NewRouter(handler, logger, routerOpts...)

	return &App{
		client:    client,
		handler:   handler,
		router:    apiRouter,
		telemetry: provider,
		logger:    logger,
		server:    NewServer(cfg, BuildRootHandler(apiRouter, metricsHandler)),
	}, nil
}

// SettingsFromConfig extracts the fixed request values handlers send to Plaid.
func SettingsFromConfig(cfg config.Config) api.Settings {
	return api.Settings{
		Environment: cfg.Plaid.Environment.String(),
		Link: plaidapi.LinkIdentity{
			UserID:       cfg.Plaid.ClientUserID,
			ClientName:   cfg.Plaid.ClientName,
			Products:     cfg.Plaid.Products,
			CountryCodes: cfg.Plaid.CountryCodes,
			Language:     cfg.Plaid.Language,
		},
		InstitutionCountryCodes: cfg.Plaid.CountryCodes,
		InstitutionsCount:       cfg.Plaid.InstitutionsCount,
		InstitutionsOffset:      cfg.Plaid.InstitutionsOffset,
	}
}

// BuildRootHandler constructs the root HTTP handler that serves the pages,
// the optional metrics endpoint, and routes API requests.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.Handle("GET /link", servePage("link.html"))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFileFS(w, r, web.FS, "home.html")
	}))

	return mux
}

func servePage(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, web.FS, name)
	})
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the root handler served by the HTTP server.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Shutdown drains the HTTP server and flushes metrics.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.telemetry != nil {
		if tErr := a.telemetry.Shutdown(ctx); tErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown telemetry: %w", tErr))
		}
	}
	return err
}

// Close stops the HTTP server immediately.
func (a *App) Close() error {
	return a.server.Close()
}
