package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/legallens/internal/ai"
	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/logger"
	"github.com/spigell/legallens/internal/metrics"
	"github.com/spigell/legallens/internal/tender"
)

const tracerName = "github.com/spigell/legallens/internal/pipeline"

// Archiver persists composed results and returns the key they were stored under.
type Archiver interface {
	Store(ctx context.Context, runID string, result tender.Result) (string, error)
}

// Pipeline wires the analysis stages together. It holds no per-run state
// and may serve concurrent runs.
type Pipeline struct {
	encoder   *document.Encoder
	retriever ai.ContextRetriever
	analyzer  ai.Analyzer
	archiver  Archiver
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	observer  Observer
}

type Option func(*Pipeline)

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(p *Pipeline) { p.observer = observer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithArchiver stores every composed result. Archive failures are logged only.
func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

func New(encoder *document.Encoder, retriever ai.ContextRetriever, analyzer ai.Analyzer, opts ...Option) (*Pipeline, error) {
	if encoder == nil {
		return nil, errors.New("document encoder is required")
	}
	if retriever == nil {
		return nil, errors.New("context retriever is required")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}

	p := &Pipeline{
		encoder:   encoder,
		retriever: retriever,
		analyzer:  analyzer,
		tracer:    otel.Tracer(tracerName),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Analyze executes one run. The returned Run is always non-nil; err equals
// Run.Err when the run ends in StateFailed.
func (p *Pipeline) Analyze(ctx context.Context, req tender.Request, in document.Input) (*Run, error) {
	run := newRun(req)
	log := logger.WithFields(p.logger, logger.RunFields(run.ID, req.Variant.String(), req.Subject())...).
		With(zap.String("document", in.Name))

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("request.variant", req.Variant.String()),
		attribute.String("request.subject", req.Subject()),
	))
	defer span.End()

	log.Info("analysis run started")

	in, err := p.admit(ctx, req, in)
	if err != nil {
		return p.fail(run, span, log, StageAdmit, err)
	}

	p.transition(run, log, StateRetrievingContext)

	var (
		encoded *document.Encoded
		mc      tender.MarketContext
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		encoded, err = p.encode(gCtx, in)
		return err
	})
	g.Go(func() error {
		var err error
		mc, err = p.marketContext(gCtx, log, req)
		return err
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		stage := StageEncode
		if !errors.Is(err, tender.ErrEncoding) && !errors.Is(err, tender.ErrAdmission) {
			stage = StageContext
		}
		return p.fail(run, span, log, stage, err)
	}
	run.Context = mc

	p.transition(run, log, StateAnalyzing)

	analysis, err := p.analyze(ctx, req, encoded, mc.Text)
	if err != nil {
		return p.fail(run, span, log, StageAnalyze, err)
	}

	result := p.compose(ctx, *analysis, mc)
	if err := ctx.Err(); err != nil {
		return p.fail(run, span, log, StageCompose, err)
	}

	run.Result = &result
	p.transition(run, log, StateComposed)
	p.metrics.ObserveRun(req.Variant.String(), string(StateComposed))

	log.Info("analysis run composed",
		zap.Int("feasibility_score", result.FeasibilityScore),
		zap.Int("alignment_score", result.AlignmentScore),
		zap.Bool("context_fallback", mc.Fallback),
		zap.Int("grounding_sources", len(result.GroundingSources)),
	)

	run.ArchiveKey = p.archive(ctx, log, run.ID, result)

	return run, nil
}

// admit runs before any backend call and returns the buffered document.
func (p *Pipeline) admit(ctx context.Context, req tender.Request, in document.Input) (document.Input, error) {
	var admitted document.Input
	err := p.stage(ctx, StageAdmit, func(context.Context) error {
		if err := req.Validate(); err != nil {
			return &tender.AdmissionError{Reason: err.Error()}
		}
		var err error
		admitted, err = p.encoder.Admit(in)
		return err
	})
	return admitted, err
}

func (p *Pipeline) encode(ctx context.Context, in document.Input) (*document.Encoded, error) {
	var encoded *document.Encoded
	err := p.stage(ctx, StageEncode, func(context.Context) error {
		var err error
		encoded, err = p.encoder.Encode(in)
		return err
	})
	return encoded, err
}

// marketContext applies the FallbackOnFailure policy of the context stage.
// Only cancellation of the run is returned as an error.
func (p *Pipeline) marketContext(ctx context.Context, log *zap.Logger, req tender.Request) (tender.MarketContext, error) {
	if !req.Grounded() {
		return tender.MarketContext{Sources: []tender.GroundingSource{}}, nil
	}

	var mc tender.MarketContext
	err := p.stage(ctx, StageContext, func(ctx context.Context) error {
		var err error
		mc, err = p.retriever.Retrieve(ctx, req.EntityName)
		return err
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tender.MarketContext{}, ctxErr
		}

		failure := &tender.ContextRetrievalFailure{Entity: req.EntityName, Err: err}
		log.Warn("market context retrieval failed, using fallback context",
			zap.String("policy", StageContext.Policy.String()),
			zap.Error(failure),
		)
		p.metrics.ObserveFallback()
		return tender.FallbackContext(req.EntityName), nil
	}

	return normalizeContext(mc, req.EntityName), nil
}

func normalizeContext(mc tender.MarketContext, entity string) tender.MarketContext {
	if strings.TrimSpace(mc.Text) == "" {
		mc.Text = fmt.Sprintf("Market overview for %s.", strings.TrimSpace(entity))
	}
	sources := make([]tender.GroundingSource, 0, len(mc.Sources))
	for _, s := range mc.Sources {
		if len(sources) == tender.MaxGroundingSources {
			break
		}
		if strings.TrimSpace(s.URI) == "" {
			continue
		}
		sources = append(sources, s)
	}
	mc.Sources = sources
	return mc
}

func (p *Pipeline) analyze(ctx context.Context, req tender.Request, doc *document.Encoded, marketContext string) (*tender.Analysis, error) {
	var analysis *tender.Analysis
	err := p.stage(ctx, StageAnalyze, func(ctx context.Context) error {
		var err error
		analysis, err = p.analyzer.Analyze(ctx, req, doc, marketContext)
		if err == nil && analysis == nil {
			err = &tender.EmptyResponseError{}
		}
		return err
	})
	return analysis, err
}

func (p *Pipeline) compose(ctx context.Context, analysis tender.Analysis, mc tender.MarketContext) tender.Result {
	var result tender.Result
	_ = p.stage(ctx, StageCompose, func(context.Context) error {
		result = tender.Compose(analysis, mc)
		return nil
	})
	return result
}

func (p *Pipeline) archive(ctx context.Context, log *zap.Logger, runID string, result tender.Result) string {
	if p.archiver == nil {
		return ""
	}

	var key string
	err := p.stage(ctx, StageArchive, func(ctx context.Context) error {
		var err error
		key, err = p.archiver.Store(ctx, runID, result)
		return err
	})
	if err != nil {
		log.Warn("failed to archive result", zap.String("policy", StageArchive.Policy.String()), zap.Error(err))
		return ""
	}

	log.Debug("result archived", zap.String("archive_key", key))
	return key
}

// stage runs fn inside its own span and records its duration.
func (p *Pipeline) stage(ctx context.Context, s Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+s.Name, trace.WithAttributes(
		attribute.String("stage.policy", s.Policy.String()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.metrics.ObserveStage(s.Name, outcome, time.Since(start))

	return err
}

func (p *Pipeline) fail(run *Run, span trace.Span, log *zap.Logger, s Stage, err error) (*Run, error) {
	run.Err = err
	run.Result = nil
	p.transition(run, log, StateFailed)
	p.metrics.ObserveRun(run.Request.Variant.String(), string(StateFailed))

	span.RecordError(err)
	span.SetStatus(codes.Error, s.Name+" failed")

	log.Error("analysis run failed",
		zap.String(logger.FieldStage, s.Name),
		zap.String("policy", s.Policy.String()),
		zap.Error(err),
	)

	return run, err
}

func (p *Pipeline) transition(run *Run, log *zap.Logger, to State) {
	from := run.State
	run.State = to

	now := time.Now()
	if to.Terminal() {
		run.FinishedAt = now
	}

	log.Debug("run state changed", zap.String("from", string(from)), zap.String("to", string(to)))

	if p.observer != nil {
		p.observer(Transition{RunID: run.ID, From: from, To: to, At: now})
	}
}
