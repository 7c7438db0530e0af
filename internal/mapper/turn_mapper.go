package mapper

import (
	"encoding/json"

	"chat-lens-be/internal/entity"
	"chat-lens-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TurnMapper struct{}

func NewTurnMapper() *TurnMapper {
	return &TurnMapper{}
}

func (m *TurnMapper) TurnToModel(conversationID uuid.UUID, seq int, t *entity.Turn) (*model.ChatTurn, error) {
	if t == nil {
		return nil, nil
	}

	out := &model.ChatTurn{
		Id:             t.Id,
		ConversationId: conversationID,
		Seq:            seq,
		Role:           t.Role,
		Content:        t.Content,
		CreatedAt:      t.CreatedAt,
	}

	if len(t.Sources) > 0 {
		raw, err := json.Marshal(t.Sources)
		if err != nil {
			return nil, err
		}
		out.Sources = datatypes.JSON(raw)
	}
	if t.Thoughts != nil {
		raw, err := json.Marshal(t.Thoughts)
		if err != nil {
			return nil, err
		}
		out.Thoughts = datatypes.JSON(raw)
	}
	return out, nil
}

func (m *TurnMapper) TurnToEntity(c *model.ChatTurn) (*entity.Turn, error) {
	if c == nil {
		return nil, nil
	}

	t := &entity.Turn{
		Id:        c.Id,
		Role:      c.Role,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}

	if len(c.Sources) > 0 {
		if err := json.Unmarshal(c.Sources, &t.Sources); err != nil {
			return nil, err
		}
	}
	if len(c.Thoughts) > 0 && string(c.Thoughts) != "null" {
		var th entity.Thoughts
		if err := json.Unmarshal(c.Thoughts, &th); err != nil {
			return nil, err
		}
		t.Thoughts = &th
	}
	return t, nil
}
