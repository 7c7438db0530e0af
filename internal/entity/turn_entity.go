package entity

import (
	"time"

	"github.com/google/uuid"
)

// Thoughts is the per-stage transcript kept on an assistant turn.
type Thoughts struct {
	Database string `json:"database,omitempty"`
	Vector   string `json:"vector,omitempty"`
	Web      string `json:"web,omitempty"`
}

// Turn is one conversation entry. Once appended to a conversation it is
// never modified.
type Turn struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources,omitempty"`
	Thoughts  *Thoughts `json:"thoughts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Turn) Clone() Turn {
	c := t
	if t.Sources != nil {
		c.Sources = append([]string(nil), t.Sources...)
	}
	if t.Thoughts != nil {
		th := *t.Thoughts
		c.Thoughts = &th
	}
	return c
}
