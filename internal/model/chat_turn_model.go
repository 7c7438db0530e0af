package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatTurn struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;index:idx_chat_turns_conversation_seq,priority:1"`
	Seq            int            `gorm:"not null;index:idx_chat_turns_conversation_seq,priority:2"`
	Role           string         `gorm:"type:varchar(20);not null"`
	Content        string         `gorm:"type:text;not null"`
	Sources        datatypes.JSON `gorm:"type:jsonb"`
	Thoughts       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time
	ArchivedAt     time.Time `gorm:"autoCreateTime"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}
