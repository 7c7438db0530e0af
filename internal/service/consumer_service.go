package service

import (
	"context"
	"encoding/json"

	"chat-lens-be/internal/dto"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/repository/unitofwork"
	"chat-lens-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// TurnBroadcaster pushes a serialized turn event to a conversation's watchers.
type TurnBroadcaster interface {
	SendConversation(conversationID uuid.UUID, data []byte)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub      *gochannel.GoChannel
	topicName   string
	broadcaster TurnBroadcaster
	uowFactory  unitofwork.RepositoryFactory
	logger      logger.ILogger
}

// NewConsumerService wires the turn topic to the websocket hub and, when
// uowFactory is not nil, to the transcript archive.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	broadcaster TurnBroadcaster,
	uowFactory unitofwork.RepositoryFactory,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:      pubSub,
		topicName:   topicName,
		broadcaster: broadcaster,
		uowFactory:  uowFactory,
		logger:      log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// the publisher blocks until this ack, so every path must ack
	defer msg.Ack()

	var event dto.TurnEventMessage
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal turn event", map[string]interface{}{"error": err})
		return
	}

	conversationID, err := uuid.Parse(event.ConversationId)
	if err != nil {
		cs.logger.Warn("ConsumerService", "Turn event without conversation", map[string]interface{}{"type": event.Type})
		return
	}

	if cs.broadcaster != nil {
		cs.broadcaster.SendConversation(conversationID, msg.Payload)
	}

	if event.Type == events.TurnCompleted && cs.uowFactory != nil {
		cs.archive(ctx, conversationID, msg.Payload)
	}
}

func (cs *consumerService) archive(ctx context.Context, conversationID uuid.UUID, payload []byte) {
	var completed struct {
		Data dto.TurnCompletedData `json:"data"`
	}
	if err := json.Unmarshal(payload, &completed); err != nil {
		cs.logger.Error("ConsumerService", "Malformed completed turn", map[string]interface{}{"error": err})
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		cs.logger.Error("ConsumerService", "Failed to begin archive transaction", map[string]interface{}{"error": err})
		return
	}
	defer uow.Rollback()

	if err := uow.ChatTurnRepository().Create(ctx, conversationID, completed.Data.UserTurn, completed.Data.Turn); err != nil {
		cs.logger.Error("ConsumerService", "Failed to archive turn", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err,
		})
		return
	}

	if err := uow.Commit(); err != nil {
		cs.logger.Error("ConsumerService", "Failed to commit archived turn", map[string]interface{}{"error": err})
		return
	}

	cs.logger.Debug("ConsumerService", "Turn archived", map[string]interface{}{
		"conversation_id": conversationID,
		"turn_id":         completed.Data.Turn.Id,
	})
}
