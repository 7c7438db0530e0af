package serverutils

import (
	"fmt"
	"testing"

	"chat-lens-be/internal/repository/memory"
	"chat-lens-be/pkg/rag/executor"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Query    string `json:"query" validate:"required"`
	Language string `json:"language" validate:"omitempty,oneof=English Hindi"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Query: "q"}))
	assert.NoError(t, ValidateRequest(sampleRequest{Query: "q", Language: "Hindi"}))

	err := ValidateRequest(sampleRequest{Language: "Klingon"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["query"])
	assert.Equal(t, "must be one of English Hindi", verr.Fields["language"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ValidationError{Fields: map[string]string{"query": "is required"}}, fiber.StatusBadRequest},
		{"not found", fmt.Errorf("load: %w", memory.ErrConversationNotFound), fiber.StatusNotFound},
		{"canceled turn", fmt.Errorf("run: %w", executor.ErrTurnCanceled), fiber.StatusConflict},
		{"failed turn", fmt.Errorf("%w: boom", executor.ErrTurnFailed), fiber.StatusInternalServerError},
		{"fiber error", fiber.NewError(fiber.StatusConflict, "busy"), fiber.StatusConflict},
		{"other", fmt.Errorf("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := classify(tt.err)
			assert.Equal(t, tt.want, code)
		})
	}
}
