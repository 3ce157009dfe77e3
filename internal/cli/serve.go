package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"weather-widget/internal/config"
	"weather-widget/internal/geocode"
	"weather-widget/internal/httpapi"
	"weather-widget/internal/observability"
	"weather-widget/internal/owm"
	"weather-widget/internal/panel"
	"weather-widget/internal/pipeline"
	"weather-widget/internal/session"
)

const serviceName = "weather-widget"

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget page, its API and the page socket.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	shutdownObs, promHandler, tracer := observability.SetupObservability(serviceName)
	defer shutdownObs()

	handler, err := newRouter(rt.cfg, rt.logger, promHandler, observability.MetricsAndTracingMiddleware(tracer, serviceName))
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         ":" + rt.cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("weather-widget started", "port", rt.cfg.Port, "sample_data", rt.cfg.OpenWeather.APIKey == "")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rt.logger.Info("shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// newRouter wires the upstream clients, the page socket and the HTTP API.
func newRouter(cfg config.Config, logger *slog.Logger, promHandler http.Handler, observe func(http.Handler) http.Handler) (http.Handler, error) {
	forecaster := newForecaster(cfg)
	geocoder, err := geocode.New(cfg.Geocoder.Provider, cfg.GeocoderKey(), cfg.Geocoder.BaseURL)
	if err != nil {
		return nil, err
	}
	renderer := newRenderer(cfg)

	sessions := session.NewHandler(pipeline.Deps{
		Default:    cfg.Map.Default,
		Geocoder:   geocoder,
		Forecaster: forecaster,
		Renderer:   renderer,
		Logger:     logger,
	})
	srv := httpapi.NewServer(cfg, forecaster, geocoder, renderer, sessions)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	if observe != nil {
		r.Use(observe)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if promHandler != nil {
		r.Handle("/metrics", promHandler)
	}

	srv.RegisterRoutes(r)
	return r, nil
}

func newForecaster(cfg config.Config) *owm.Client {
	return owm.New(cfg.OpenWeather.BaseURL, owm.Options{
		APIKey:  cfg.OpenWeather.APIKey,
		Units:   cfg.OpenWeather.Units,
		Exclude: cfg.OpenWeather.Exclude,
	})
}

func newRenderer(cfg config.Config) *panel.Renderer {
	return panel.NewRenderer(cfg.Panel.Days, cfg.Panel.IconBase, cfg.OpenWeather.Units)
}
