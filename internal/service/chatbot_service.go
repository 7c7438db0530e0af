package service

import (
	"context"
	"errors"
	"sync"

	"chat-lens-be/internal/config"
	"chat-lens-be/internal/dto"
	"chat-lens-be/internal/entity"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/repository/contract"
	"chat-lens-be/internal/repository/memory"
	"chat-lens-be/internal/repository/specification"
	"chat-lens-be/pkg/rag/executor"
	"chat-lens-be/pkg/rag/state"

	"github.com/google/uuid"
)

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	CreateConversation(ctx context.Context) (*dto.CreateConversationResponse, error)
	SubmitQuery(ctx context.Context, conversationId uuid.UUID, request *dto.SubmitQueryRequest, wait bool) (*dto.SubmitQueryResponse, error)
	GetHistory(ctx context.Context, conversationId uuid.UUID, query dto.HistoryQuery) (*dto.HistoryResponse, error)
	GetStatus(ctx context.Context, conversationId uuid.UUID) (*dto.StatusResponse, error)
	CancelTurn(ctx context.Context, conversationId uuid.UUID) (*dto.CancelResponse, error)
	DeleteConversation(ctx context.Context, conversationId uuid.UUID) error
	ExportConversation(ctx context.Context, conversationId uuid.UUID) (*dto.ExportResponse, error)
	Shutdown(ctx context.Context) error
}

type chatbotService struct {
	conversations *memory.ConversationRepository
	archive       contract.ChatTurnRepository
	fetcher       executor.StreamFetcher
	sink          executor.ProgressSink
	logger        logger.ILogger
	options       executor.Options

	mu            sync.Mutex
	orchestrators map[uuid.UUID]*executor.Orchestrator

	// background turns run on baseCtx so they outlive the request that started them
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewChatbotService builds the service. archive may be nil when no database
// is configured.
func NewChatbotService(
	conversations *memory.ConversationRepository,
	archive contract.ChatTurnRepository,
	fetcher executor.StreamFetcher,
	sink executor.ProgressSink,
	cfg config.ChatbotConfig,
	log logger.ILogger,
) IChatbotService {
	baseCtx, stop := context.WithCancel(context.Background())

	s := &chatbotService{
		conversations: conversations,
		archive:       archive,
		fetcher:       fetcher,
		sink:          sink,
		logger:        log,
		options: executor.Options{
			Language:        cfg.Language,
			StageTimeout:    cfg.StageTimeout,
			FallbackContent: cfg.FallbackContent,
		},
		orchestrators: make(map[uuid.UUID]*executor.Orchestrator),
		baseCtx:       baseCtx,
		stop:          stop,
	}
	conversations.OnEvicted(s.dropOrchestrator)
	return s
}

func (s *chatbotService) CreateConversation(ctx context.Context) (*dto.CreateConversationResponse, error) {
	conv := s.conversations.Create()
	s.logger.Info("ChatbotService", "Conversation created", map[string]interface{}{"conversation_id": conv.Id})

	return &dto.CreateConversationResponse{
		Id:        conv.Id,
		CreatedAt: conv.CreatedAt,
	}, nil
}

func (s *chatbotService) SubmitQuery(ctx context.Context, conversationId uuid.UUID, request *dto.SubmitQueryRequest, wait bool) (*dto.SubmitQueryResponse, error) {
	orch, err := s.orchestrator(conversationId)
	if err != nil {
		return nil, err
	}

	pending, err := orch.Begin(ctx, request.Query, request.Language)
	if executor.IsNoop(err) {
		return &dto.SubmitQueryResponse{Accepted: false, Reason: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	userTurn := pending.User

	if wait {
		assistant, err := orch.Run(ctx, pending)
		if err != nil {
			return nil, err
		}
		return &dto.SubmitQueryResponse{Accepted: true, UserTurn: &userTurn, Assistant: &assistant}, nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// failures are logged and published by the orchestrator
		_, _ = orch.Run(s.baseCtx, pending)
	}()

	return &dto.SubmitQueryResponse{Accepted: true, UserTurn: &userTurn}, nil
}

// GetHistory returns one page of the transcript. An expired conversation is
// read back from the archive when one is configured.
func (s *chatbotService) GetHistory(ctx context.Context, conversationId uuid.UUID, query dto.HistoryQuery) (*dto.HistoryResponse, error) {
	turns, err := s.conversations.Turns(conversationId)
	if err == nil {
		return &dto.HistoryResponse{
			ConversationId: conversationId,
			Total:          len(turns),
			Turns:          pageOf(turns, query),
		}, nil
	}
	if !errors.Is(err, memory.ErrConversationNotFound) || s.archive == nil {
		return nil, err
	}

	byConversation := specification.ByConversationID{ConversationID: conversationId}
	total, err := s.archive.Count(ctx, byConversation)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, memory.ErrConversationNotFound
	}

	turns, err = s.archive.FindAll(ctx, byConversation, specification.Pagination{Limit: query.Limit, Offset: query.Offset})
	if err != nil {
		return nil, err
	}

	return &dto.HistoryResponse{
		ConversationId: conversationId,
		FromArchive:    true,
		Total:          int(total),
		Turns:          turns,
	}, nil
}

func (s *chatbotService) GetStatus(ctx context.Context, conversationId uuid.UUID) (*dto.StatusResponse, error) {
	if !s.conversations.Exists(conversationId) {
		return nil, memory.ErrConversationNotFound
	}

	s.mu.Lock()
	orch := s.orchestrators[conversationId]
	s.mu.Unlock()

	var snap state.Snapshot
	if orch != nil {
		snap = orch.Snapshot()
	} else {
		snap = state.NewManager().Snapshot()
	}

	panels := make([]dto.StagePanelDTO, 0, len(state.Stages))
	for _, stage := range state.Stages {
		panels = append(panels, dto.StagePanelDTO{
			Stage:  stage,
			Status: snap.Panels[stage],
			Text:   snap.Text[stage],
		})
	}

	return &dto.StatusResponse{
		ConversationId: conversationId,
		Stage:          snap.Stage,
		IsStreaming:    snap.IsStreaming,
		Query:          snap.Query,
		Panels:         panels,
		Sources:        snap.Sources,
	}, nil
}

func (s *chatbotService) CancelTurn(ctx context.Context, conversationId uuid.UUID) (*dto.CancelResponse, error) {
	if !s.conversations.Exists(conversationId) {
		return nil, memory.ErrConversationNotFound
	}

	s.mu.Lock()
	orch := s.orchestrators[conversationId]
	s.mu.Unlock()

	canceled := orch != nil && orch.Cancel()
	return &dto.CancelResponse{Canceled: canceled}, nil
}

// DeleteConversation discards the conversation; a turn still in flight is
// canceled through the eviction hook.
func (s *chatbotService) DeleteConversation(ctx context.Context, conversationId uuid.UUID) error {
	if !s.conversations.Delete(conversationId) {
		return memory.ErrConversationNotFound
	}
	s.logger.Info("ChatbotService", "Conversation deleted", map[string]interface{}{"conversation_id": conversationId})
	return nil
}

func (s *chatbotService) ExportConversation(ctx context.Context, conversationId uuid.UUID) (*dto.ExportResponse, error) {
	turns, err := s.conversations.Turns(conversationId)
	fromArchive := false

	if errors.Is(err, memory.ErrConversationNotFound) && s.archive != nil {
		turns, err = s.archive.FindAll(ctx, specification.ByConversationID{ConversationID: conversationId})
		if err != nil {
			return nil, err
		}
		if len(turns) == 0 {
			return nil, memory.ErrConversationNotFound
		}
		fromArchive = true
	} else if err != nil {
		return nil, err
	}

	return &dto.ExportResponse{
		ConversationId: conversationId,
		FromArchive:    fromArchive,
		Markdown:       RenderMarkdown(conversationId, turns),
	}, nil
}

// Shutdown cancels background turns and waits for them to unwind.
func (s *chatbotService) Shutdown(ctx context.Context) error {
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chatbotService) orchestrator(conversationId uuid.UUID) (*executor.Orchestrator, error) {
	if !s.conversations.Exists(conversationId) {
		return nil, memory.ErrConversationNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if orch, ok := s.orchestrators[conversationId]; ok {
		return orch, nil
	}
	orch := executor.NewOrchestrator(conversationId, s.fetcher, s.conversations, s.sink, s.logger, s.options)
	s.orchestrators[conversationId] = orch
	return orch, nil
}

func pageOf(turns []entity.Turn, query dto.HistoryQuery) []entity.Turn {
	if query.Offset < 0 {
		query.Offset = 0
	}
	if query.Offset >= len(turns) {
		return []entity.Turn{}
	}
	turns = turns[query.Offset:]
	if query.Limit > 0 && query.Limit < len(turns) {
		turns = turns[:query.Limit]
	}
	return turns
}

func (s *chatbotService) dropOrchestrator(conversationId uuid.UUID) {
	s.mu.Lock()
	orch, ok := s.orchestrators[conversationId]
	delete(s.orchestrators, conversationId)
	s.mu.Unlock()

	if ok {
		orch.Cancel()
	}
}
