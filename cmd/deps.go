package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/spigell/legallens/internal/ai"
	"github.com/spigell/legallens/internal/ai/gemini"
	"github.com/spigell/legallens/internal/archive"
	"github.com/spigell/legallens/internal/cache"
	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/logger"
	"github.com/spigell/legallens/internal/metrics"
	"github.com/spigell/legallens/internal/pipeline"
	"github.com/spigell/legallens/internal/secrets"
)

// components is everything a command needs to run analyses and answer questions.
type components struct {
	client    *gemini.Client
	pipeline  *pipeline.Pipeline
	assistant *gemini.Assistant
	archive   *archive.Store
	tracer    *sdktrace.TracerProvider
	shutdown  []func(context.Context) error
}

func (c *components) Close(ctx context.Context) {
	for _, fn := range c.shutdown {
		_ = fn(ctx)
	}
}

func newGeminiClient(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Client, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:    "gemini api key",
		File:    cfg.Gemini.APIKeyFile,
		FileEnv: "GEMINI_API_KEY_FILE",
		Value:   cfg.Gemini.APIKey,
		Env:     "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	return gemini.NewClient(ctx, apiKey, cfg.Gemini.MaxLogLength, logger)
}

func newEncoder(cfg *DocumentConfig) *document.Encoder {
	return document.NewEncoder(cfg.MaxSizeMB<<20, cfg.VerifyStructure)
}

// newComponents wires the backend client, the optional cache and archive,
// and the pipeline. m may be nil.
func newComponents(ctx context.Context, config *Config, m *metrics.Metrics, logger *zap.Logger) (*components, error) {
	client, err := newGeminiClient(ctx, config.AI, logger)
	if err != nil {
		return nil, err
	}

	c := &components{client: client}

	var retriever ai.ContextRetriever = gemini.NewRetriever(client, config.AI.Gemini.ContextModel)

	if config.Cache != nil && config.Cache.Redis.Enabled() {
		rdb := cache.NewClient(config.Cache.Redis)
		c.shutdown = append(c.shutdown, func(context.Context) error { return rdb.Close() })

		retriever = cache.NewRetriever(retriever, rdb, config.Cache.Redis.TTL, logger, m)
		logger.Info("market context cache enabled", zap.String("addr", config.Cache.Redis.Addr))
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithTracerProvider(c.tracerProvider(logger)),
	}

	if config.Archive != nil && config.Archive.Minio.Enabled() {
		store, err := archive.New(ctx, config.Archive.Minio)
		if err != nil {
			return nil, err
		}
		c.archive = store
		opts = append(opts, pipeline.WithArchiver(store))
		logger.Info("result archive enabled",
			zap.String("endpoint", config.Archive.Minio.Endpoint),
			zap.String("bucket", config.Archive.Minio.Bucket),
		)
	}

	p, err := pipeline.New(
		newEncoder(config.Document),
		retriever,
		gemini.NewAnalyzer(client, config.AI.Gemini.AnalysisModel),
		opts...,
	)
	if err != nil {
		return nil, err
	}

	c.pipeline = p
	c.assistant = gemini.NewAssistant(client, config.AI.Gemini.AssistantModel)

	return c, nil
}

func (c *components) tracerProvider(log *zap.Logger) *sdktrace.TracerProvider {
	c.tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(logger.NewSpanLogger(log)))
	c.shutdown = append(c.shutdown, c.tracer.Shutdown)
	return c.tracer
}

// newMetrics registers the pipeline collectors on a dedicated registry.
func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return metrics.New(reg), reg
}
