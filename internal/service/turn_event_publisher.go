package service

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-lens-be/internal/dto"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventExporter receives terminal turn events for other systems.
type EventExporter interface {
	Publish(ctx context.Context, event events.Event) error
}

// TurnEventPublisher is the orchestrators' progress sink. Every event goes
// onto the in-process topic; terminal events are exported as well.
type TurnEventPublisher struct {
	pubSub   *gochannel.GoChannel
	topic    string
	exporter EventExporter
	logger   logger.ILogger
}

func NewTurnEventPublisher(pubSub *gochannel.GoChannel, topic string, exporter EventExporter, log logger.ILogger) *TurnEventPublisher {
	return &TurnEventPublisher{
		pubSub:   pubSub,
		topic:    topic,
		exporter: exporter,
		logger:   log,
	}
}

func (p *TurnEventPublisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(toMessage(event))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	if err := p.pubSub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}

	if p.exporter != nil && events.IsTerminal(event.EventType()) {
		if err := p.exporter.Publish(ctx, event); err != nil {
			p.logger.Warn("TurnEventPublisher", "Failed to export turn event", map[string]interface{}{
				"event": event.EventType(),
				"error": err.Error(),
			})
		}
	}
	return nil
}

func toMessage(event events.Event) dto.TurnEventMessage {
	data := event.Payload()
	conversationID, _ := data["conversation_id"].(string)
	if te, ok := event.(events.TurnEvent); ok {
		conversationID = te.ConversationID
	}

	body := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k == "conversation_id" {
			continue
		}
		body[k] = v
	}

	return dto.TurnEventMessage{
		Type:           event.EventType(),
		ConversationId: conversationID,
		Data:           body,
		OccurredAt:     event.Timestamp(),
	}
}
