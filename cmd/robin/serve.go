package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/robin-backend/internal/agent"
	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/auth"
	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/blob/memblob"
	"github.com/tjfontaine/robin-backend/internal/blob/s3store"
	"github.com/tjfontaine/robin-backend/internal/config"
	"github.com/tjfontaine/robin-backend/internal/conversation"
	"github.com/tjfontaine/robin-backend/internal/facts"
	"github.com/tjfontaine/robin-backend/internal/frontdoor"
	"github.com/tjfontaine/robin-backend/internal/llm"
	"github.com/tjfontaine/robin-backend/internal/llm/gemini"
	"github.com/tjfontaine/robin-backend/internal/safehttp"
	"github.com/tjfontaine/robin-backend/internal/server"
	"github.com/tjfontaine/robin-backend/internal/storage"
	"github.com/tjfontaine/robin-backend/internal/storage/memory"
	"github.com/tjfontaine/robin-backend/internal/storage/sqldb"
	"github.com/tjfontaine/robin-backend/internal/telemetry"
	"github.com/tjfontaine/robin-backend/internal/terminal"
	"github.com/tjfontaine/robin-backend/internal/tokens"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("robin", logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	blobs, err := openBlob(ctx, cfg.Blob)
	if err != nil {
		return err
	}

	if cfg.Gemini.APIKey == "" {
		return errors.New("gemini.api_key is required (or set GEMINI_API_KEY)")
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	model, err := gemini.New(ctx, cfg.Gemini.APIKey, httpClient, logger)
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}

	var factsModel llm.Model = model
	if cfg.Facts.APIKey != cfg.Gemini.APIKey {
		if factsModel, err = gemini.New(ctx, cfg.Facts.APIKey, httpClient, logger); err != nil {
			logger.Warn("fact generator model unavailable, serving fallback facts", slog.String("error", err.Error()))
			factsModel = nil
		}
	}

	fetchTransport := http.RoundTripper(safehttp.NewTransport())
	if cfg.Agent.AllowPrivateFetch {
		fetchTransport = http.DefaultTransport
	}
	fetchClient := &http.Client{Transport: otelhttp.NewTransport(fetchTransport), Timeout: cfg.Agent.ModelCallTimeout}

	resolver := attachments.NewResolver(blobs, attachments.Config{
		Bucket:    cfg.Blob.UploadsBucket,
		SignedTTL: cfg.Blob.SignedURLTTL,
	}, logger)
	exec, err := tools.NewExecutor(tools.Deps{
		Store:    store,
		Blob:     blobs,
		Resolver: resolver,
		Fetcher:  attachments.NewFetcher(fetchClient, blobs, logger),
		LLM:      model,
		Logger:   logger,
		Metrics:  metrics,
	}, tools.Config{
		DefaultModel:     cfg.Gemini.DefaultModel,
		ImageModel:       cfg.Gemini.ImageModel,
		ReviewModel:      cfg.Gemini.ReviewModel,
		DiagnosisModel:   cfg.Gemini.DiagnosisModel,
		GeneratedBucket:  cfg.Blob.GeneratedBucket,
		SignedURLTTL:     cfg.Blob.SignedURLTTL,
		ModelCallTimeout: cfg.Agent.ModelCallTimeout,
		FilePollInterval: cfg.Agent.FilePollInterval,
		FilePollTimeout:  cfg.Agent.FilePollTimeout,
	})
	if err != nil {
		return fmt.Errorf("create tool executor: %w", err)
	}

	runner := agent.NewRunner(model, exec, agent.Config{
		DefaultModel:     cfg.Gemini.DefaultModel,
		MaxRounds:        cfg.Agent.MaxRounds,
		ModelCallTimeout: cfg.Agent.ModelCallTimeout,
	}, logger, metrics)

	handler := frontdoor.NewHandler(frontdoor.Deps{
		Runner:  runner,
		Context: agent.NewContextBuilder(store, logger),
		Window: agent.Window{
			Tokens: tokens.NewRegistry(tokens.NewTiktokenCounter()),
			Budget: cfg.Agent.HistoryTokenBudget,
		},
		Store:    store,
		Resolver: resolver,
		Recorder: conversation.NewRecorder(store, logger),
		Shell:    terminal.New(store),
		Facts:    facts.NewGenerator(factsModel, cfg.Facts.Model, logger),
		Logger:   logger,
	}, frontdoor.Options{
		HistoryWindow: cfg.Agent.HistoryWindow,
		PingInterval:  cfg.Agent.PingInterval,
	})

	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret)
	if !authenticator.Verifying() {
		logger.Warn("auth.jwt_secret is empty; bearer tokens are decoded without signature checks")
	}

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSHeaders:    cfg.Server.CORS.AllowedHeaders,
		Authenticator:  authenticator,
	}, logger)
	srv.Router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.Routes(srv.Router)

	logger.Info("robin starting",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("blob", cfg.Blob.Driver),
		slog.String("default_model", cfg.Gemini.DefaultModel),
	)
	return srv.Start(ctx)
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	s, err := sqldb.New(sqldb.Config{Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return s, nil
}

func openBlob(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	if cfg.Driver == "memory" {
		return memblob.New(), nil
	}
	s, err := s3store.New(ctx, s3store.Config{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		PublicBaseURL:   cfg.PublicBaseURL,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("open s3 store: %w", err)
	}
	return s, nil
}
