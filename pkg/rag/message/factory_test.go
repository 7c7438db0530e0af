package message

import (
	"testing"

	"chat-lens-be/internal/constant"
	"chat-lens-be/internal/entity"

	"github.com/stretchr/testify/assert"
)

func TestFactory_CreateAssistantTurn(t *testing.T) {
	f := NewFactory("fallback")

	tests := []struct {
		name        string
		summary     string
		sources     []string
		wantContent string
		wantSources []string
	}{
		{name: "summary kept", summary: "Summary: ok", sources: []string{"a", "a"}, wantContent: "Summary: ok", wantSources: []string{"a", "a"}},
		{name: "empty summary uses fallback", summary: "", wantContent: "fallback", wantSources: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := f.CreateAssistantTurn(tt.summary, tt.sources, entity.Thoughts{Database: "db"})

			assert.Equal(t, constant.ChatMessageRoleAssistant, turn.Role)
			assert.Equal(t, tt.wantContent, turn.Content)
			assert.Equal(t, tt.wantSources, turn.Sources)
			assert.Equal(t, "db", turn.Thoughts.Database)
		})
	}
}

func TestFactory_IdsAreUnique(t *testing.T) {
	f := NewFactory("")
	a := f.CreateUserTurn("q")
	b := f.CreateUserTurn("q")

	assert.NotEqual(t, a.Id, b.Id)
	assert.Equal(t, constant.ChatMessageRoleUser, a.Role)
	assert.Nil(t, a.Thoughts)
}

func TestFactory_AssistantSourcesAreCopied(t *testing.T) {
	f := NewFactory("")
	sources := []string{"x"}
	turn := f.CreateAssistantTurn("s", sources, entity.Thoughts{})
	sources[0] = "changed"

	assert.Equal(t, []string{"x"}, turn.Sources)
}
