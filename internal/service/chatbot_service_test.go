package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-lens-be/internal/config"
	"chat-lens-be/internal/dto"
	"chat-lens-be/internal/model"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/repository/implementation"
	"chat-lens-be/internal/repository/memory"
	"chat-lens-be/internal/repository/unitofwork"
	"chat-lens-be/pkg/database"
	"chat-lens-be/pkg/events"
	"chat-lens-be/pkg/rag/state"
	"chat-lens-be/pkg/stream"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

type upstream struct {
	mu       sync.Mutex
	bodies   map[string]map[string]interface{}
	failing  map[string]bool
	blocking map[string]bool
}

func (u *upstream) handler(w http.ResponseWriter, r *http.Request) {
	stage := strings.TrimPrefix(r.URL.Path, "/chatbot")

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	u.mu.Lock()
	u.bodies[stage] = body
	fail, block := u.failing[stage], u.blocking[stage]
	u.mu.Unlock()

	if fail {
		http.Error(w, "upstream down", http.StatusInternalServerError)
		return
	}
	if block {
		<-r.Context().Done()
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	send := func(payload string) {
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	switch stage {
	case "/stream-db":
		send(`{"type":"chunk","data":"DB: "}`)
		send(`{"type":"chunk","data":"10M"}`)
	case "/stream-vector":
		send(`{"type":"chunk","data":"Doc: see filing"}`)
		send(`{"type":"sources","data":["10-Q.pdf"]}`)
	case "/stream-web":
		send(`{"type":"chunk","data":"Web: press release confirms"}`)
		send(`{"type":"sources","data":["https://news.example/q3"]}`)
	case "/stream-summary":
		send(`{"type":"chunk","data":"Summary: Q3 revenue "}`)
		send(`{"type":"chunk","data":"was $10M"}`)
	}
}

func (u *upstream) body(stage string) map[string]interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bodies[stage]
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) SendConversation(_ uuid.UUID, data []byte) {
	var msg dto.TurnEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	b.mu.Lock()
	b.types = append(b.types, msg.Type)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.types...)
}

type fixture struct {
	svc         IChatbotService
	upstream    *upstream
	broadcaster *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNopLogger()

	up := &upstream{
		bodies:   map[string]map[string]interface{}{},
		failing:  map[string]bool{},
		blocking: map[string]bool{},
	}
	server := httptest.NewServer(http.HandlerFunc(up.handler))
	t.Cleanup(server.Close)

	db, err := database.NewGormDB(sqlite.Open(filepath.Join(t.TempDir(), "archive.db")), gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &model.ChatTurn{}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	broadcaster := &recordingBroadcaster{}
	consumer := NewConsumerService(pubSub, "turns", broadcaster, unitofwork.NewRepositoryFactory(db), log)
	require.NoError(t, consumer.Consume(ctx))

	cfg := config.ChatbotConfig{
		Language:        "English",
		StageTimeout:    5 * time.Second,
		FallbackContent: config.DefaultFallbackContent,
	}
	svc := NewChatbotService(
		memory.NewConversationRepository(time.Hour),
		implementation.NewChatTurnRepository(db),
		stream.NewFetcher(server.URL+"/chatbot", log),
		NewTurnEventPublisher(pubSub, "turns", nil, log),
		cfg,
		log,
	)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return &fixture{svc: svc, upstream: up, broadcaster: broadcaster}
}

func (f *fixture) newConversation(t *testing.T) uuid.UUID {
	t.Helper()
	res, err := f.svc.CreateConversation(context.Background())
	require.NoError(t, err)
	return res.Id
}

func TestChatbotService_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t)

	res, err := f.svc.SubmitQuery(ctx, id, &dto.SubmitQueryRequest{Query: "What is the Q3 revenue?"}, true)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.NotNil(t, res.Assistant)

	assert.Equal(t, "Summary: Q3 revenue was $10M", res.Assistant.Content)
	assert.Equal(t, []string{"10-Q.pdf", "https://news.example/q3"}, res.Assistant.Sources)
	assert.Equal(t, "DB: 10M", res.Assistant.Thoughts.Database)

	summary := f.upstream.body("/stream-summary")
	assert.Equal(t, "What is the Q3 revenue?", summary["user_query"])
	assert.Equal(t, "DB: 10M", summary["db_response"])
	assert.Equal(t, "Doc: see filing\nWeb: press release confirms", summary["article_response"])
	assert.Equal(t, "English", summary["language"])

	history, err := f.svc.GetHistory(ctx, id, dto.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, history.Turns, 2)
	assert.Equal(t, "user", history.Turns[0].Role)
	assert.Equal(t, "assistant", history.Turns[1].Role)

	seen := f.broadcaster.seen()
	require.NotEmpty(t, seen)
	assert.Equal(t, events.TurnStarted, seen[0])
	assert.Equal(t, events.TurnCompleted, seen[len(seen)-1])
	assert.Contains(t, seen, events.StageSources)
}

func TestChatbotService_WebOutage(t *testing.T) {
	f := newFixture(t)
	f.upstream.failing["/stream-web"] = true
	id := f.newConversation(t)

	res, err := f.svc.SubmitQuery(context.Background(), id, &dto.SubmitQueryRequest{Query: "q", Language: "Spanish"}, true)
	require.NoError(t, err)

	assert.Equal(t, "Summary: Q3 revenue was $10M", res.Assistant.Content)
	assert.Equal(t, []string{"10-Q.pdf"}, res.Assistant.Sources)
	assert.Equal(t, "", res.Assistant.Thoughts.Web)

	summary := f.upstream.body("/stream-summary")
	assert.Equal(t, "Doc: see filing\n", summary["article_response"])
	assert.Equal(t, "Spanish", summary["language"])
}

func TestChatbotService_AsyncStatusAndCancel(t *testing.T) {
	f := newFixture(t)
	f.upstream.blocking["/stream-db"] = true
	ctx := context.Background()
	id := f.newConversation(t)

	res, err := f.svc.SubmitQuery(ctx, id, &dto.SubmitQueryRequest{Query: "slow question"}, false)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "slow question", res.UserTurn.Content)
	assert.Nil(t, res.Assistant)

	status, err := f.svc.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.True(t, status.IsStreaming)
	assert.Equal(t, state.StageDatabase, status.Stage)
	assert.Equal(t, state.PanelStreaming, status.Panels[0].Status)

	again, err := f.svc.SubmitQuery(ctx, id, &dto.SubmitQueryRequest{Query: "another"}, false)
	require.NoError(t, err)
	assert.False(t, again.Accepted)

	canceled, err := f.svc.CancelTurn(ctx, id)
	require.NoError(t, err)
	assert.True(t, canceled.Canceled)

	require.Eventually(t, func() bool {
		s, err := f.svc.GetStatus(ctx, id)
		return err == nil && !s.IsStreaming
	}, 2*time.Second, 10*time.Millisecond)

	history, err := f.svc.GetHistory(ctx, id, dto.HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, history.Turns, 1)
	require.Eventually(t, func() bool {
		seen := f.broadcaster.seen()
		return len(seen) > 0 && seen[len(seen)-1] == events.TurnFailed
	}, time.Second, 10*time.Millisecond)
}

func TestChatbotService_ExportFallsBackToArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t)

	_, err := f.svc.SubmitQuery(ctx, id, &dto.SubmitQueryRequest{Query: "What is the Q3 revenue?"}, true)
	require.NoError(t, err)

	live, err := f.svc.ExportConversation(ctx, id)
	require.NoError(t, err)
	assert.False(t, live.FromArchive)

	require.NoError(t, f.svc.DeleteConversation(ctx, id))

	archived, err := f.svc.ExportConversation(ctx, id)
	require.NoError(t, err)
	assert.True(t, archived.FromArchive)
	assert.Contains(t, archived.Markdown, "What is the Q3 revenue?")
	assert.Contains(t, archived.Markdown, "Summary: Q3 revenue was $10M")
	assert.Contains(t, archived.Markdown, "- https://news.example/q3")
}

func TestChatbotService_HistoryPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t)

	for _, q := range []string{"first question", "second question"} {
		_, err := f.svc.SubmitQuery(ctx, id, &dto.SubmitQueryRequest{Query: q}, true)
		require.NoError(t, err)
	}

	live, err := f.svc.GetHistory(ctx, id, dto.HistoryQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.False(t, live.FromArchive)
	assert.Equal(t, 4, live.Total)
	require.Len(t, live.Turns, 2)
	assert.Equal(t, "second question", live.Turns[0].Content)
	assert.Equal(t, "assistant", live.Turns[1].Role)

	past, err := f.svc.GetHistory(ctx, id, dto.HistoryQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Turns)

	require.NoError(t, f.svc.DeleteConversation(ctx, id))

	archived, err := f.svc.GetHistory(ctx, id, dto.HistoryQuery{Limit: 1, Offset: 2})
	require.NoError(t, err)
	assert.True(t, archived.FromArchive)
	assert.Equal(t, 4, archived.Total)
	require.Len(t, archived.Turns, 1)
	assert.Equal(t, "second question", archived.Turns[0].Content)

	rest, err := f.svc.GetHistory(ctx, id, dto.HistoryQuery{Offset: 1})
	require.NoError(t, err)
	assert.Len(t, rest.Turns, 3)
}

func TestChatbotService_UnknownConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := f.svc.SubmitQuery(ctx, id, &dto.SubmitQueryRequest{Query: "q"}, true)
	assert.ErrorIs(t, err, memory.ErrConversationNotFound)
	_, err = f.svc.GetStatus(ctx, id)
	assert.ErrorIs(t, err, memory.ErrConversationNotFound)
	_, err = f.svc.CancelTurn(ctx, id)
	assert.ErrorIs(t, err, memory.ErrConversationNotFound)
	assert.ErrorIs(t, f.svc.DeleteConversation(ctx, id), memory.ErrConversationNotFound)
	_, err = f.svc.ExportConversation(ctx, id)
	assert.ErrorIs(t, err, memory.ErrConversationNotFound)
	_, err = f.svc.GetHistory(ctx, id, dto.HistoryQuery{})
	assert.ErrorIs(t, err, memory.ErrConversationNotFound)
}
