package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chat-lens-be/internal/constant"
	"chat-lens-be/internal/entity"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/pkg/events"
	"chat-lens-be/pkg/rag/message"
	"chat-lens-be/pkg/rag/state"

	"github.com/google/uuid"
)

const logModule = "TurnOrchestrator"

var (
	// ErrEmptyQuery and ErrTurnInFlight reject a submit without side effects.
	ErrEmptyQuery   = errors.New("query is empty")
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrTurnFailed and ErrTurnCanceled abort a turn; nothing is appended for
	// the assistant.
	ErrTurnFailed   = errors.New("turn failed")
	ErrTurnCanceled = errors.New("turn canceled")
)

// IsNoop reports whether err is a silent submit rejection.
func IsNoop(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrTurnInFlight)
}

// StreamFetcher runs one streaming stage request. Implementations absorb
// their own failures and return "" for a stage that produced nothing.
type StreamFetcher interface {
	Fetch(ctx context.Context, endpoint string, body any, onChunk func(string), onSources func([]string)) string
}

// TurnStore receives finished turns.
type TurnStore interface {
	Append(conversationID uuid.UUID, turn entity.Turn) error
}

// ProgressSink receives turn lifecycle events for the render layer.
type ProgressSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type Options struct {
	Language        string
	StageTimeout    time.Duration
	FallbackContent string
}

type retrievalRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

type summaryRequest struct {
	UserQuery       string `json:"user_query"`
	DBResponse      string `json:"db_response"`
	ArticleResponse string `json:"article_response"`
	Language        string `json:"language"`
}

type stageSpec struct {
	stage          state.Stage
	endpoint       string
	collectSources bool
}

var retrievalStages = []stageSpec{
	{stage: state.StageDatabase, endpoint: constant.StreamEndpointDatabase},
	{stage: state.StageVector, endpoint: constant.StreamEndpointVector, collectSources: true},
	{stage: state.StageWeb, endpoint: constant.StreamEndpointWeb, collectSources: true},
}

// PendingTurn is a turn that passed Begin and is waiting for Run.
type PendingTurn struct {
	User     entity.Turn
	Language string
}

// Orchestrator drives the turns of one conversation through the
// database → vector → web → summary pipeline. Stages run strictly one after
// another because each request depends on the text of the previous ones.
type Orchestrator struct {
	conversationID uuid.UUID
	fetcher        StreamFetcher
	store          TurnStore
	sink           ProgressSink
	logger         logger.ILogger
	state          *state.Manager
	factory        *message.Factory
	language       string
	stageTimeout   time.Duration

	mu              sync.Mutex
	cancel          context.CancelFunc
	cancelRequested bool
	finalized       bool
}

func NewOrchestrator(
	conversationID uuid.UUID,
	fetcher StreamFetcher,
	store TurnStore,
	sink ProgressSink,
	log logger.ILogger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		conversationID: conversationID,
		fetcher:        fetcher,
		store:          store,
		sink:           sink,
		logger:         log,
		state:          state.NewManager(),
		factory:        message.NewFactory(opts.FallbackContent),
		language:       opts.Language,
		stageTimeout:   opts.StageTimeout,
	}
}

// Submit runs a whole turn and returns the appended assistant turn.
func (o *Orchestrator) Submit(ctx context.Context, query, language string) (entity.Turn, error) {
	pending, err := o.Begin(ctx, query, language)
	if err != nil {
		return entity.Turn{}, err
	}
	return o.Run(ctx, pending)
}

// Begin claims the orchestrator for a new turn and appends the user turn.
// A blank query or a turn already in flight is rejected with no side effects.
func (o *Orchestrator) Begin(ctx context.Context, query, language string) (*PendingTurn, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if !o.state.Begin(query) {
		return nil, ErrTurnInFlight
	}

	o.mu.Lock()
	o.cancelRequested = false
	o.finalized = false
	o.mu.Unlock()

	userTurn := o.factory.CreateUserTurn(query)
	if err := o.store.Append(o.conversationID, userTurn); err != nil {
		o.state.Reset()
		return nil, fmt.Errorf("%w: append user turn: %w", ErrTurnFailed, err)
	}

	if language == "" {
		language = o.language
	}
	o.emit(ctx, events.TurnStarted, map[string]interface{}{"turn": userTurn})

	return &PendingTurn{User: userTurn, Language: language}, nil
}

// Run executes the four stages for a turn returned by Begin.
func (o *Orchestrator) Run(ctx context.Context, pending *PendingTurn) (turn entity.Turn, err error) {
	ctx, cancel := context.WithCancel(ctx)
	o.attachCancel(cancel)
	defer func() {
		o.detachCancel()
		cancel()
	}()

	defer func() {
		if r := recover(); r != nil {
			turn = entity.Turn{}
			err = o.abort(ctx, pending, fmt.Errorf("%w: %v", ErrTurnFailed, r))
		}
	}()

	query := pending.User.Content
	retrieval := retrievalRequest{Query: query, Language: pending.Language}

	results := make(map[state.Stage]string, len(retrievalStages))
	for _, spec := range retrievalStages {
		if err := canceled(ctx); err != nil {
			return entity.Turn{}, o.abort(ctx, pending, err)
		}
		results[spec.stage] = o.runStage(ctx, spec, retrieval)
	}

	if err := canceled(ctx); err != nil {
		return entity.Turn{}, o.abort(ctx, pending, err)
	}
	summary := o.runStage(ctx, stageSpec{stage: state.StageSummary, endpoint: constant.StreamEndpointSummary}, summaryRequest{
		UserQuery:       query,
		DBResponse:      results[state.StageDatabase],
		ArticleResponse: results[state.StageVector] + "\n" + results[state.StageWeb],
		Language:        pending.Language,
	})
	if err := canceled(ctx); err != nil {
		return entity.Turn{}, o.abort(ctx, pending, err)
	}
	if err := o.finalize(); err != nil {
		return entity.Turn{}, o.abort(ctx, pending, err)
	}

	assistant := o.factory.CreateAssistantTurn(summary, o.state.Sources(), entity.Thoughts{
		Database: results[state.StageDatabase],
		Vector:   results[state.StageVector],
		Web:      results[state.StageWeb],
	})
	if err := o.store.Append(o.conversationID, assistant); err != nil {
		return entity.Turn{}, o.abort(ctx, pending, fmt.Errorf("%w: append assistant turn: %w", ErrTurnFailed, err))
	}

	o.state.Reset()
	o.logger.Info(logModule, "Turn completed", map[string]interface{}{
		"conversation_id": o.conversationID,
		"turn_id":         assistant.Id,
		"sources":         len(assistant.Sources),
	})
	o.emit(ctx, events.TurnCompleted, map[string]interface{}{
		"user_turn": pending.User,
		"turn":      assistant,
	})
	return assistant, nil
}

// Cancel aborts the turn in flight, if any.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finalized || !o.state.IsStreaming() {
		return false
	}
	o.cancelRequested = true
	if o.cancel != nil {
		o.cancel()
	}
	return true
}

func (o *Orchestrator) IsStreaming() bool {
	return o.state.IsStreaming()
}

func (o *Orchestrator) Snapshot() state.Snapshot {
	return o.state.Snapshot()
}

func (o *Orchestrator) runStage(ctx context.Context, spec stageSpec, body any) string {
	o.state.SetStage(spec.stage)
	o.emit(ctx, events.StageStarted, map[string]interface{}{"stage": spec.stage})

	stageCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	onChunk := func(text string) {
		o.state.SetText(spec.stage, text)
		o.emit(ctx, events.StageChunk, map[string]interface{}{"stage": spec.stage, "text": text})
	}

	var onSources func([]string)
	if spec.collectSources {
		onSources = func(sources []string) {
			o.state.AddSources(sources)
			o.emit(ctx, events.StageSources, map[string]interface{}{"stage": spec.stage, "sources": sources})
		}
	}

	text := o.fetcher.Fetch(stageCtx, spec.endpoint, body, onChunk, onSources)
	o.logger.Debug(logModule, "Stage finished", map[string]interface{}{
		"conversation_id": o.conversationID,
		"stage":           spec.stage,
		"bytes":           len(text),
	})
	return text
}

func (o *Orchestrator) abort(ctx context.Context, pending *PendingTurn, err error) error {
	o.state.Reset()
	o.logger.Error(logModule, "Turn aborted", map[string]interface{}{
		"conversation_id": o.conversationID,
		"user_turn_id":    pending.User.Id,
		"error":           err,
	})
	o.emit(ctx, events.TurnFailed, map[string]interface{}{
		"user_turn_id": pending.User.Id,
		"message":      constant.TurnFailedMessage,
		"error":        err.Error(),
	})
	return err
}

func (o *Orchestrator) emit(ctx context.Context, eventType string, data map[string]interface{}) {
	if o.sink == nil {
		return
	}
	event := events.NewTurnEvent(eventType, o.conversationID.String(), data)
	if err := o.sink.Publish(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Warn(logModule, "Failed to publish turn event", map[string]interface{}{
			"event": eventType,
			"error": err,
		})
	}
}

// finalize commits the turn to completion. Cancel reports false from here on.
func (o *Orchestrator) finalize() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelRequested {
		return fmt.Errorf("%w: %w", ErrTurnCanceled, context.Canceled)
	}
	o.finalized = true
	return nil
}

func (o *Orchestrator) attachCancel(cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancel = cancel
	if o.cancelRequested {
		cancel()
	}
}

func (o *Orchestrator) detachCancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancel = nil
	o.cancelRequested = false
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTurnCanceled, err)
	}
	return nil
}
