package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id        uuid.UUID
	CreatedAt time.Time
	Turns     []Turn
}
