package events

import "time"

// Turn lifecycle event codes.
const (
	TurnStarted   = "TURN_STARTED"
	StageStarted  = "STAGE_STARTED"
	StageChunk    = "STAGE_CHUNK"
	StageSources  = "STAGE_SOURCES"
	TurnCompleted = "TURN_COMPLETED"
	TurnFailed    = "TURN_FAILED"
)

// TurnEvent is a BaseEvent scoped to one conversation.
type TurnEvent struct {
	BaseEvent
	ConversationID string
}

// NewTurnEvent stamps conversation_id into the payload so consumers that
// only see the payload can still route it.
func NewTurnEvent(eventType, conversationID string, data map[string]interface{}) TurnEvent {
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["conversation_id"] = conversationID

	return TurnEvent{
		BaseEvent: BaseEvent{
			Type:       eventType,
			Data:       payload,
			OccurredAt: time.Now(),
		},
		ConversationID: conversationID,
	}
}

// IsTerminal reports whether the event ends a turn.
func IsTerminal(eventType string) bool {
	return eventType == TurnCompleted || eventType == TurnFailed
}
