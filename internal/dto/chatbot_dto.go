package dto

import (
	"time"

	"chat-lens-be/internal/entity"
	"chat-lens-be/pkg/rag/state"

	"github.com/google/uuid"
)

type CreateConversationResponse struct {
	Id        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type SubmitQueryRequest struct {
	Query    string `json:"query" validate:"required,max=4000"`
	Language string `json:"language,omitempty" validate:"omitempty,oneof=English Hindi Spanish French German"`
}

// SubmitQueryResponse carries the user turn when the turn was started, and
// the assistant turn as well when the caller waited for it.
type SubmitQueryResponse struct {
	Accepted  bool         `json:"accepted"`
	Reason    string       `json:"reason,omitempty"`
	UserTurn  *entity.Turn `json:"user_turn,omitempty"`
	Assistant *entity.Turn `json:"assistant,omitempty"`
}

// HistoryQuery pages the transcript. Limit 0 returns every turn from Offset on.
type HistoryQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type HistoryResponse struct {
	ConversationId uuid.UUID     `json:"conversation_id"`
	FromArchive    bool          `json:"from_archive"`
	Total          int           `json:"total"`
	Turns          []entity.Turn `json:"turns"`
}

type StagePanelDTO struct {
	Stage  state.Stage       `json:"stage"`
	Status state.PanelStatus `json:"status"`
	Text   string            `json:"text"`
}

type StatusResponse struct {
	ConversationId uuid.UUID       `json:"conversation_id"`
	Stage          state.Stage     `json:"stage"`
	IsStreaming    bool            `json:"is_streaming"`
	Query          string          `json:"query,omitempty"`
	Panels         []StagePanelDTO `json:"panels"`
	Sources        []string        `json:"sources"`
}

type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

type ExportResponse struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	FromArchive    bool      `json:"from_archive"`
	Markdown       string    `json:"markdown"`
}

// TurnEventMessage is the bus and websocket form of a turn event.
type TurnEventMessage struct {
	Type           string                 `json:"type"`
	ConversationId string                 `json:"conversation_id"`
	Data           map[string]interface{} `json:"data"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// TurnCompletedData is the data of a TURN_COMPLETED message.
type TurnCompletedData struct {
	UserTurn entity.Turn `json:"user_turn"`
	Turn     entity.Turn `json:"turn"`
}
