package bootstrap

import (
	"context"
	"log"
	"time"

	"chat-lens-be/internal/config"
	"chat-lens-be/internal/controller"
	"chat-lens-be/internal/handler"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/repository/contract"
	"chat-lens-be/internal/repository/implementation"
	"chat-lens-be/internal/repository/memory"
	"chat-lens-be/internal/repository/unitofwork"
	"chat-lens-be/internal/service"
	"chat-lens-be/internal/websocket"
	pktNats "chat-lens-be/pkg/nats"
	"chat-lens-be/pkg/stream"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatbotController controller.IChatbotController
	TurnFeedHandler   *handler.TurnFeedHandler

	// Background services, run by main
	ConsumerService service.IConsumerService
	ChatbotService  service.IChatbotService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	pubSub   *gochannel.GoChannel
	natsPub  *pktNats.Publisher
	rdb      *redis.Client
	wsLogger logger.ILogger
}

// NewContainer wires the service. db may be nil, which disables the
// transcript archive.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Event Bus; blocking publish keeps each conversation's events in order
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)

	// Archive
	var uowFactory unitofwork.RepositoryFactory
	var archive contract.ChatTurnRepository
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
		archive = implementation.NewChatTurnRepository(db)
	}

	// NATS
	var exporter service.EventExporter
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			exporter = pub
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v (websocket fan-out stays local)", err)
			rdb.Close()
			rdb = nil
		}
		cancel()
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)

	// Services
	conversations := memory.NewConversationRepository(cfg.Chatbot.ConversationTTL)
	fetcher := stream.NewFetcher(cfg.Chatbot.StreamURL(), sysLogger)
	turnPublisher := service.NewTurnEventPublisher(pubSub, cfg.Events.TurnTopic, exporter, sysLogger)

	chatbotService := service.NewChatbotService(
		conversations,
		archive,
		fetcher,
		turnPublisher,
		cfg.Chatbot,
		sysLogger,
	)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Events.TurnTopic,
		wsHub,
		uowFactory,
		sysLogger,
	)

	return &Container{
		ChatbotController: controller.NewChatbotController(chatbotService),
		TurnFeedHandler:   handler.NewTurnFeedHandler(chatbotService, wsHub, wsLogger),

		ConsumerService: consumerService,
		ChatbotService:  chatbotService,
		WebSocketHub:    wsHub,
		Logger:          sysLogger,

		pubSub:   pubSub,
		natsPub:  natsPub,
		rdb:      rdb,
		wsLogger: wsLogger,
	}
}

// Close releases the connections opened by NewContainer.
func (c *Container) Close() {
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	_ = c.wsLogger.Sync()
	_ = c.Logger.Sync()
}
