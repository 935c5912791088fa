package main

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/content-tree/pkg/contenttree/api"
	"github.com/tendant/content-tree/pkg/contenttree/config"
	"github.com/tendant/content-tree/pkg/contenttree/metrics"
)

type Config struct {
	ApiKeySHA256   string `env:"API_KEY_SHA256" env-default:"1"`
	LogLevel       string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat      string `env:"LOG_FORMAT" env-default:"text"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" env-default:"true"`
	EnvPrefix      string `env:"CONTENT_TREE_ENV_PREFIX" env-default:""`
}

func newLogger(c Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	opts := []config.Option{
		config.WithEnv(cfg.EnvPrefix),
		config.WithLogger(logger),
	}

	var recorder *metrics.Recorder
	registry := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.New(registry)
		opts = append(opts, config.WithMetrics(recorder))
	}

	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}
	defer serverConfig.Close()

	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(serverConfig.DatabaseURL, serverConfig.DBSchema); err != nil {
			slog.Error("Failed to reach database", "err", err)
			os.Exit(1)
		}
	}

	svc, err := serverConfig.BuildService()
	if err != nil {
		slog.Error("Failed to build content tree service", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	if recorder != nil {
		server.R.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"key1": cfg.ApiKeySHA256,
		},
	})
	if err != nil {
		slog.Error("Failed initialize API Key middleware", "err", err)
		return
	}

	contentHandler := api.NewContentHandler(svc, logger)
	server.R.Route("/api/v1", func(r chi.Router) {
		if recorder != nil {
			r.Use(recorder.Middleware)
		}
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			r.Mount("/", contentHandler.Routes())
		})
	})

	slog.Info("Starting content tree server",
		"environment", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"archive", serverConfig.Archive.Type,
		"publish_guard", serverConfig.PublishGuard)

	server.Run()
}
