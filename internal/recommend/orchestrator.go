package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/mediarec/internal/llm/prompts"
	"github.com/pavelanni/mediarec/internal/metrics"
	"github.com/pavelanni/mediarec/internal/model"
	"github.com/pavelanni/mediarec/internal/parser"
)

// Stage is a step of a pipeline run. Runs advance linearly and never go back.
type Stage string

const (
	StageReceived             Stage = "Received"
	StageContextReady         Stage = "ContextReady"
	StagePromptComposed       Stage = "PromptComposed"
	StageAnalysisDone         Stage = "AnalysisDone"
	StageSearchPromptComposed Stage = "SearchPromptComposed"
	StageCandidatesFetched    Stage = "CandidatesFetched"
	StageValidated            Stage = "Validated"
	StageAssembled            Stage = "Assembled"
	StagePersisted            Stage = "Persisted"
	StagePublished            Stage = "Published"
	StageAborted              Stage = "Aborted"
)

// ErrInvalidTrigger is returned when a run is started with an unusable event or request.
var ErrInvalidTrigger = errors.New("invalid trigger")

// Analyzer produces a search phrase from a context prompt.
type Analyzer interface {
	Analyze(ctx context.Context, p model.Prompt) (string, error)
}

// Retriever produces raw recommendation text from a result prompt.
type Retriever interface {
	Retrieve(ctx context.Context, p model.Prompt) (model.RawResponse, error)
}

// Sink stores one run's records atomically.
type Sink interface {
	SaveRecommendations(ctx context.Context, recs []model.MediaRecommendation) error
}

// Emitter announces a persisted batch. Emit must not block on delivery.
type Emitter interface {
	Emit(ctx context.Context, ev model.RecommendationCreatedEvent)
}

// SessionDetailReader loads per-question details for a session.
type SessionDetailReader interface {
	SessionQuestionDetails(ctx context.Context, sessionID string) ([]model.QuestionDetail, error)
}

// Deps are the collaborators shared by both orchestrators.
type Deps struct {
	Composer  *prompts.Composer
	Analysis  Analyzer
	Retrieval Retriever
	Sink      Sink
	Emitter   Emitter
	Now       func() time.Time // defaults to time.Now
}

func (d *Deps) fill() {
	if d.Composer == nil {
		d.Composer = prompts.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Result describes the end state of one run.
type Result struct {
	Stage        Stage
	SearchPhrase string
	Records      []model.MediaRecommendation
	Dropped      int
	Published    bool
}

// run tracks the stage of a single pipeline run.
type run struct {
	kind  model.RecommendationKind
	start time.Time
	log   *slog.Logger
	res   Result
}

func newRun(kind model.RecommendationKind, attrs ...any) *run {
	r := &run{
		kind:  kind,
		start: time.Now(),
		log:   slog.Default().With(append([]any{"kind", kind}, attrs...)...),
		res:   Result{Stage: StageReceived},
	}
	r.log.Debug("pipeline stage", "stage", StageReceived)
	return r
}

func (r *run) advance(s Stage) {
	r.res.Stage = s
	r.log.Debug("pipeline stage", "stage", s)
}

func (r *run) abort(from Stage, err error) (Result, error) {
	r.res.Stage = StageAborted
	r.res.Records = nil
	r.log.Error("pipeline aborted", "stage", from, "error", err)
	r.finish("aborted")
	return r.res, err
}

func (r *run) finish(outcome string) {
	metrics.PipelineRuns.WithLabelValues(string(r.kind), outcome).Inc()
	metrics.PipelineDuration.WithLabelValues(string(r.kind)).Observe(time.Since(r.start).Seconds())
}

// fetch runs the shared tail of both pipelines: analysis, result prompt,
// retrieval, validation, assembly, persistence and notification.
func (r *run) fetch(ctx context.Context, d *Deps, analysis model.Prompt, result func(phrase string) model.Prompt, stamp Stamp, genres []string) (Result, error) {
	r.advance(StagePromptComposed)

	phrase, err := d.Analysis.Analyze(ctx, analysis)
	if err != nil {
		return r.abort(StagePromptComposed, fmt.Errorf("analysis: %w", err))
	}
	r.res.SearchPhrase = phrase
	r.advance(StageAnalysisDone)

	resultPrompt := result(phrase)
	r.advance(StageSearchPromptComposed)

	raw, err := d.Retrieval.Retrieve(ctx, resultPrompt)
	if err != nil {
		return r.abort(StageSearchPromptComposed, fmt.Errorf("retrieval: %w", err))
	}
	r.advance(StageCandidatesFetched)

	parsed := parser.ParseDetailed(raw)
	for reason, n := range parsed.Dropped {
		metrics.CandidatesDropped.WithLabelValues(string(reason)).Add(float64(n))
		r.res.Dropped += n
	}
	metrics.MediaTypeCoerced.Add(float64(parsed.Coerced))
	r.advance(StageValidated)

	stamp.Prompt = resultPrompt
	stamp.Now = d.Now()
	recs := Assemble(parsed.Candidates, stamp)
	r.advance(StageAssembled)

	if len(recs) == 0 {
		r.log.Info("no valid recommendations, skipping persistence and notification", "dropped", r.res.Dropped)
		r.advance(StagePersisted)
		r.advance(StagePublished)
		r.finish("empty")
		return r.res, nil
	}

	if err := d.Sink.SaveRecommendations(ctx, recs); err != nil {
		return r.abort(StagePersisted, fmt.Errorf("persist recommendations: %w", err))
	}
	metrics.RecommendationsPersisted.WithLabelValues(string(r.kind)).Add(float64(len(recs)))
	r.res.Records = recs
	r.advance(StagePersisted)

	d.Emitter.Emit(ctx, model.NewRecommendationCreatedEvent(recs, genres, d.Now()))
	r.res.Published = true
	r.advance(StagePublished)

	r.log.Info("recommendations generated", "count", len(recs), "dropped", r.res.Dropped, "phrase", phrase)
	r.finish("published")
	return r.res, nil
}

// RealTime runs the session-triggered pipeline.
type RealTime struct {
	deps    Deps
	details SessionDetailReader
	count   int
}

// NewRealTime returns the session-triggered orchestrator. details may be nil,
// in which case events without question details are analysed as they are.
func NewRealTime(deps Deps, details SessionDetailReader, count int) *RealTime {
	deps.fill()
	if count <= 0 {
		count = 2
	}
	return &RealTime{deps: deps, details: details, count: count}
}

// Run processes one session-completed signal. A non-nil error means the run
// was aborted and the trigger should be redelivered, except for
// ErrInvalidTrigger which no redelivery can fix.
func (rt *RealTime) Run(ctx context.Context, lc model.LearningContext) (Result, error) {
	r := newRun(model.KindRealTimeSession, "session_id", lc.SessionID, "user_id", lc.UserID)

	if lc.SessionID == "" || lc.UserID == "" {
		return r.abort(StageReceived, fmt.Errorf("%w: session and user ids are required", ErrInvalidTrigger))
	}

	if len(lc.SessionQuestions) == 0 && rt.details != nil {
		details, err := rt.details.SessionQuestionDetails(ctx, lc.SessionID.String())
		if err != nil {
			r.log.Warn("session question lookup failed, continuing without details", "error", err)
		} else {
			lc.SessionQuestions = details
		}
	}
	r.advance(StageContextReady)

	analysis := rt.deps.Composer.AnalysisPrompt(lc)
	result := func(phrase string) model.Prompt {
		return rt.deps.Composer.ResultPrompt(prompts.ResultRequest{
			Kind:         model.KindRealTimeSession,
			SearchPhrase: phrase,
			Count:        rt.count,
			Context:      &lc,
		})
	}
	stamp := Stamp{UserID: lc.UserID.String(), Kind: model.KindRealTimeSession, SessionID: lc.SessionID.String()}
	return r.fetch(ctx, &rt.deps, analysis, result, stamp, nil)
}

// Request is an on-demand recommendation request.
type Request struct {
	UserID string
	Genres []model.Genre
}

// Validate checks the user id and the genre list bounds.
func (req Request) Validate() error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidTrigger)
	}
	if len(req.Genres) < model.MinGenres || len(req.Genres) > model.MaxGenres {
		return fmt.Errorf("%w: between %d and %d genres are required, got %d",
			ErrInvalidTrigger, model.MinGenres, model.MaxGenres, len(req.Genres))
	}
	for _, g := range req.Genres {
		if _, ok := model.ParseGenre(string(g)); !ok {
			return fmt.Errorf("%w: unknown genre %q", ErrInvalidTrigger, g)
		}
	}
	return nil
}

// OnDemand runs the user-requested pipeline.
type OnDemand struct {
	deps       Deps
	aggregator *Aggregator
	count      int
}

// NewOnDemand returns the user-requested orchestrator.
func NewOnDemand(deps Deps, aggregator *Aggregator, count int) *OnDemand {
	deps.fill()
	if count <= 0 {
		count = 8
	}
	return &OnDemand{deps: deps, aggregator: aggregator, count: count}
}

// Run processes one request. A non-nil error is either ErrInvalidTrigger or
// a persistence or unrecoverable client failure.
func (od *OnDemand) Run(ctx context.Context, req Request) (Result, error) {
	r := newRun(model.KindUserRequested, "user_id", req.UserID)

	if err := req.Validate(); err != nil {
		return r.abort(StageReceived, err)
	}
	genres := make([]string, len(req.Genres))
	for i, g := range req.Genres {
		genres[i] = string(g)
	}

	summary := od.aggregator.Summarize(ctx, req.UserID)
	r.advance(StageContextReady)

	analysis := od.deps.Composer.SearchPrompt(summary, genres)
	result := func(phrase string) model.Prompt {
		return od.deps.Composer.ResultPrompt(prompts.ResultRequest{
			Kind:         model.KindUserRequested,
			SearchPhrase: phrase,
			Count:        od.count,
			Summary:      &summary,
			Genres:       genres,
		})
	}
	stamp := Stamp{UserID: req.UserID, Kind: model.KindUserRequested}
	return r.fetch(ctx, &od.deps, analysis, result, stamp, genres)
}
