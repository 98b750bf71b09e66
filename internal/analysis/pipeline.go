package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jackzampolin/papercheck/internal/cache"
	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/knowledge"
	"github.com/jackzampolin/papercheck/internal/llmcall"
	"github.com/jackzampolin/papercheck/internal/metrics"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/providers"
)

// Config wires a Pipeline. Only Client is needed for analysis to succeed;
// every other dependency is optional.
type Config struct {
	// Client serves the analysis call. ProbeClient, when set, serves the
	// classifier, mark detector and compact triage calls instead.
	Client      providers.LLMClient
	ProbeClient providers.LLMClient

	Cache       cache.Cache
	Resolver    *prompts.Resolver
	Patterns    knowledge.PatternSource
	Errors      knowledge.ErrorLibrary
	Topics      knowledge.TopicGuide
	Corrections knowledge.CorrectionRecorder
	Recorder    *llmcall.Recorder
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
	Settings    Settings
}

// Pipeline runs Analyze and Recheck. It is safe for concurrent use; stages
// are built per request from a settings snapshot.
type Pipeline struct {
	client      providers.LLMClient
	probeClient providers.LLMClient
	cache       cache.Cache
	resolver    *prompts.Resolver
	patterns    knowledge.PatternSource
	errors      knowledge.ErrorLibrary
	topics      knowledge.TopicGuide
	corrections knowledge.CorrectionRecorder
	recorder    *llmcall.Recorder
	metrics     *metrics.Recorder
	logger      *slog.Logger

	mu       sync.RWMutex
	settings Settings

	inflight singleflight.Group
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = prompts.NewResolver(nil, logger)
		RegisterPrompts(resolver)
	}
	c := cfg.Cache
	if c == nil {
		c = cache.Noop{}
	}
	probe := cfg.ProbeClient
	if probe == nil {
		probe = cfg.Client
	}
	return &Pipeline{
		client:      cfg.Client,
		probeClient: probe,
		cache:       c,
		resolver:    resolver,
		patterns:    cfg.Patterns,
		errors:      cfg.Errors,
		topics:      cfg.Topics,
		corrections: cfg.Corrections,
		recorder:    cfg.Recorder,
		metrics:     cfg.Metrics,
		logger:      logger,
		settings:    cfg.Settings.withDefaults(),
	}
}

// Settings returns the thresholds currently in effect.
func (p *Pipeline) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// UpdateSettings swaps the thresholds. Requests already running keep the
// snapshot they started with.
func (p *Pipeline) UpdateSettings(s Settings) {
	s = s.withDefaults()
	p.mu.Lock()
	p.settings = s
	p.mu.Unlock()
	p.logger.Info("analysis settings updated",
		"model", s.Model, "analyze_timeout", s.AnalyzeTimeout, "consolidation_ratio", s.ConsolidationRatio)
}

// CacheStats reports the content cache counters.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// Resolver returns the prompt resolver the pipeline renders from.
func (p *Pipeline) Resolver() *prompts.Resolver {
	return p.resolver
}

type stages struct {
	classifier *Classifier
	detector   *Detector
	assembler  *Assembler
	invoker    *Invoker
	validator  *Validator
	crossval   *CrossValidator
	triage     *Triage
}

func (p *Pipeline) stages(s Settings) stages {
	analyzeCaller := &caller{
		client:      p.client,
		model:       s.Model,
		temperature: s.Temperature,
		timeout:     s.AnalyzeTimeout,
		recorder:    p.recorder,
		logger:      p.logger,
	}
	probe := *analyzeCaller
	probe.client = p.probeClient
	probe.timeout = s.ProbeTimeout
	probeCaller := &probe

	return stages{
		classifier: &Classifier{caller: probeCaller, resolver: p.resolver, logger: p.logger},
		detector:   &Detector{caller: probeCaller, resolver: p.resolver, logger: p.logger},
		assembler: &Assembler{
			resolver: p.resolver,
			patterns: p.patterns,
			errors:   p.errors,
			topics:   p.topics,
			cap:      s.ErrorPatternCap,
			total:    s.ExpectedTotal,
			logger:   p.logger,
		},
		invoker:   &Invoker{caller: analyzeCaller, resolver: p.resolver, maxAttempts: s.MaxParseAttempts, maxItems: s.MaxItems, logger: p.logger},
		validator: &Validator{settings: s, logger: p.logger},
		crossval:  &CrossValidator{settings: s, logger: p.logger},
		triage:    &Triage{caller: probeCaller, resolver: p.resolver, settings: s, logger: p.logger},
	}
}

// Analyze runs the full pipeline for one paper. Identical papers are served
// from the cache, and identical requests in flight share one run. The shared
// run is detached from every caller's cancellation and bounded by
// Settings.RunBudget; a caller that gives up returns its own context error.
func (p *Pipeline) Analyze(ctx context.Context, req exam.AnalysisRequest) (*exam.AnalysisResult, error) {
	start := time.Now()
	mode, err := validateRequest(req)
	if err != nil {
		p.metrics.RecordAnalysis("analyze", "invalid", time.Since(start).Seconds())
		return nil, err
	}
	req.Mode = mode

	key := cache.Key(req.Pages, req.Context.GradeLevel, req.Context.CurriculumUnit)
	hit, ok := p.cache.Get(ctx, key)
	if ok && !covers(hit.Mode, req.Mode) {
		p.logger.Debug("cached analysis lacks grading, running again", "paper", short(key), "cached", hit.Mode)
		ok = false
	}
	if ok {
		p.metrics.RecordCacheLookup(true)
		hit.Cache = exam.CacheMeta{Hit: true, ElapsedMs: time.Since(start).Milliseconds()}
		p.metrics.RecordAnalysis("analyze", "cache_hit", time.Since(start).Seconds())
		p.logger.Debug("analysis served from cache", "paper", short(key))
		return hit, nil
	}
	p.metrics.RecordCacheLookup(false)

	budget := p.Settings().RunBudget()
	ch := p.inflight.DoChan(key+"/"+string(req.Mode), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
		defer cancel()
		return p.analyze(runCtx, req, key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		p.metrics.RecordAnalysis("analyze", "canceled", time.Since(start).Seconds())
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		p.metrics.RecordAnalysis("analyze", outcome(res.Err), time.Since(start).Seconds())
		return nil, res.Err
	}
	if res.Shared {
		p.logger.Debug("joined in-flight analysis", "paper", short(key))
	}

	result := res.Val.(*exam.AnalysisResult).Clone()
	result.Cache = exam.CacheMeta{Hit: false, ElapsedMs: time.Since(start).Milliseconds()}
	p.metrics.RecordAnalysis("analyze", "ok", time.Since(start).Seconds())
	return result, nil
}

func (p *Pipeline) analyze(ctx context.Context, req exam.AnalysisRequest, key string) (*exam.AnalysisResult, error) {
	s := p.Settings()
	st := p.stages(s)
	logger := p.logger.With("paper", short(key), "mode", req.Mode)
	scope := req.Context.Subject
	hashes := map[string]string{}

	classification, h, err := st.classifier.Classify(ctx, req.Pages, scope, key)
	mergeHashes(hashes, h)
	if fatal(ctx, err) {
		return nil, err
	}

	grading := req.Mode.GradingInScope()
	var detection Detection
	detectorDown := false
	if grading && classification.PaperType != exam.PaperBlank {
		detection, err = st.detector.Detect(ctx, req.Pages, scope, key)
		mergeHashes(hashes, detection.Hashes)
		if fatal(ctx, err) {
			return nil, err
		}
		detectorDown = err != nil
	}

	graded := grading && (classification.GradingStatus.Graded() || detection.Status.Graded())
	instructions, err := st.assembler.Assemble(ctx, AssembleInput{
		Pages:   len(req.Pages),
		Context: req.Context,
		Mode:    req.Mode,
		Grading: graded,
		Marks:   detection.Marks,
	})
	if err != nil {
		return nil, err
	}
	mergeHashes(hashes, instructions.Hashes)
	logger.Debug("instructions assembled", "base", instructions.BaseKey, "sections", instructions.Sections)

	draft, err := st.invoker.Invoke(ctx, InvokeInput{
		Instructions:  instructions,
		Pages:         req.Pages,
		ExpectedItems: expectedItems(detection.Marks, s.VerdictFloor, s.MaxItems),
		Scope:         scope,
		PaperKey:      key,
	})
	if err != nil {
		return nil, err
	}
	mergeHashes(hashes, draft.Hashes)

	result, penalty := st.validator.Build(draft, grading)
	if grading && len(detection.Marks) > 0 {
		questions, adjustments := st.crossval.Apply(result.Questions, detection.Marks)
		result.Questions = questions
		p.applyAdjustments(ctx, result, adjustments, scope)
	}
	if detectorDown {
		result.AddReviewReason(ReasonDetectorDown)
	}

	questions, consolidation := Consolidate(result.Questions, s.ConsolidationRatio)
	result.Questions = questions
	if len(consolidation.Reassigned) > 0 {
		logger.Info("topics consolidated",
			"dominant", consolidation.Dominant, "unit", consolidation.Unit, "items", consolidation.Reassigned)
	}

	st.validator.Finish(result, penalty)
	result.Classification = classification
	result.Mode = req.Mode
	result.Marks = detection.Marks
	result.PromptHashes = hashes
	for _, q := range result.Questions {
		p.metrics.RecordResolution(string(q.ResolvedBy))
	}

	p.cache.Put(ctx, key, result)
	logger.Info("analysis complete",
		"items", len(result.Questions), "confidence", result.Confidence,
		"review", result.ReviewRequired, "attempts", draft.Attempts, "repaired", draft.Repaired)
	return result, nil
}

// RecheckRequest asks for correctness on questions that are already known.
type RecheckRequest struct {
	Pages     []exam.Page           `json:"pages"`
	Questions []exam.QuestionRecord `json:"questions"`
	Context   exam.Context          `json:"context"`
}

// Recheck resolves correctness for known questions: mark detection, local
// triage, one compact oracle call for what is left, then cross-validation.
// Results are not cached.
func (p *Pipeline) Recheck(ctx context.Context, req RecheckRequest) (*exam.AnalysisResult, error) {
	start := time.Now()
	if err := validatePages(req.Pages); err != nil {
		p.metrics.RecordAnalysis("recheck", "invalid", time.Since(start).Seconds())
		return nil, err
	}
	if len(req.Questions) == 0 {
		p.metrics.RecordAnalysis("recheck", "invalid", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: no questions to recheck", ErrInvalidRequest)
	}

	result, err := p.recheck(ctx, req)
	if err != nil {
		p.metrics.RecordAnalysis("recheck", outcome(err), time.Since(start).Seconds())
		return nil, err
	}
	result.Cache = exam.CacheMeta{ElapsedMs: time.Since(start).Milliseconds()}
	p.metrics.RecordAnalysis("recheck", "ok", time.Since(start).Seconds())
	return result, nil
}

func (p *Pipeline) recheck(ctx context.Context, req RecheckRequest) (*exam.AnalysisResult, error) {
	s := p.Settings()
	st := p.stages(s)
	key := cache.Key(req.Pages, req.Context.GradeLevel, req.Context.CurriculumUnit)
	logger := p.logger.With("paper", short(key), "entry", "recheck")
	scope := req.Context.Subject
	hashes := map[string]string{}

	questions := make([]exam.QuestionRecord, len(req.Questions))
	copy(questions, req.Questions)
	for i := range questions {
		questions[i].ItemNumber = exam.CanonicalItemNumber(questions[i].ItemNumber)
	}

	detection, err := st.detector.Detect(ctx, req.Pages, scope, key)
	mergeHashes(hashes, detection.Hashes)
	if fatal(ctx, err) {
		return nil, err
	}
	detectorDown := err != nil

	outcome, err := st.triage.Resolve(ctx, req.Pages, questions, detection.Marks, scope, key)
	if err != nil {
		return nil, err
	}
	mergeHashes(hashes, outcome.Hashes)

	result := &exam.AnalysisResult{Questions: outcome.Questions}
	if len(detection.Marks) > 0 {
		reconciled, adjustments := st.crossval.Apply(result.Questions, detection.Marks)
		result.Questions = reconciled
		p.applyAdjustments(ctx, result, adjustments, scope)
	}
	if detectorDown {
		result.AddReviewReason(ReasonDetectorDown)
	}
	if len(outcome.Unresolved) > 0 {
		result.AddReviewReason(ReasonUnresolved)
	}

	exam.SortQuestions(result.Questions)
	st.validator.Finish(result, 0)
	result.Classification = exam.ClassificationResult{
		PaperType:     exam.PaperUnknown,
		GradingStatus: detection.Status,
	}
	result.Marks = detection.Marks
	result.PromptHashes = hashes
	for _, q := range result.Questions {
		p.metrics.RecordResolution(string(q.ResolvedBy))
	}

	logger.Info("recheck complete",
		"items", len(result.Questions), "escalated", outcome.Escalated, "unresolved", outcome.Unresolved)
	return result, nil
}

// applyAdjustments records metrics and corrections for cross-validation
// changes and flags conflicts for review.
func (p *Pipeline) applyAdjustments(ctx context.Context, result *exam.AnalysisResult, adjustments []Adjustment, subject string) {
	for _, adj := range adjustments {
		p.metrics.RecordAdjustment(adj.Kind)
		if adj.Kind == AdjustConflict {
			result.AddReviewReason(ReasonVerdictClash)
		}
		corr, ok := adj.Correction(subject)
		if !ok || p.corrections == nil {
			continue
		}
		if err := p.corrections.RecordCorrection(ctx, corr); err != nil {
			p.logger.Warn("failed to record correction", "item", adj.ItemNumber, "error", err)
		}
	}
}

func validateRequest(req exam.AnalysisRequest) (exam.AnalysisMode, error) {
	if err := validatePages(req.Pages); err != nil {
		return "", err
	}
	mode, ok := exam.ParseAnalysisMode(string(req.Mode))
	if !ok {
		return "", fmt.Errorf("%w: unknown analysis mode %q", ErrInvalidRequest, req.Mode)
	}
	return mode, nil
}

func validatePages(pages []exam.Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("%w: no pages", ErrInvalidRequest)
	}
	for i, pg := range pages {
		if len(pg.Data) == 0 {
			return fmt.Errorf("%w: page %d is empty", ErrInvalidRequest, i+1)
		}
	}
	return nil
}

// fatal reports whether a classifier or detector failure must abort the
// request. Only a cancelled or expired request does; other errors degrade,
// and an outage surfaces from the analysis call itself.
func fatal(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrStructuralParse):
		return "parse_error"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrOracle):
		return "oracle_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// covers reports whether a result computed under cached can serve a request
// in mode want. Mode is not part of the cache key, so a result without
// verdicts must not answer a request that needs them.
func covers(cached, want exam.AnalysisMode) bool {
	return cached.GradingInScope() || !want.GradingInScope()
}

func mergeHashes(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
