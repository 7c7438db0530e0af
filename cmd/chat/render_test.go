package main

import (
	"bytes"
	"context"
	"testing"

	"chat-lens-be/internal/entity"
	"chat-lens-be/pkg/events"
	"chat-lens-be/pkg/rag/state"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestTerminalSink_PrintsOnlyNewText(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	sink := newTerminalSink(&out, false)
	ctx := context.Background()

	publish := func(eventType string, data map[string]interface{}) {
		_ = sink.Publish(ctx, events.NewTurnEvent(eventType, "c", data))
	}

	publish(events.TurnStarted, nil)
	publish(events.StageStarted, map[string]interface{}{"stage": state.StageDatabase})
	publish(events.StageChunk, map[string]interface{}{"stage": state.StageDatabase, "text": "DB: hidden"})
	publish(events.StageStarted, map[string]interface{}{"stage": state.StageSummary})
	publish(events.StageChunk, map[string]interface{}{"stage": state.StageSummary, "text": "Summary: "})
	publish(events.StageChunk, map[string]interface{}{"stage": state.StageSummary, "text": "Summary: $10M"})
	publish(events.TurnCompleted, map[string]interface{}{
		"turn": entity.Turn{Content: "Summary: $10M", Sources: []string{"10-Q.pdf"}},
	})

	assert.Equal(t, "\n── Answer ──\nSummary: $10M\n\nSources:\n  - 10-Q.pdf\n", out.String())
}

func TestTerminalSink_FallbackIsPrinted(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	sink := newTerminalSink(&out, true)

	_ = sink.Publish(context.Background(), events.NewTurnEvent(events.StageStarted, "c", map[string]interface{}{"stage": state.StageSummary}))
	_ = sink.Publish(context.Background(), events.NewTurnEvent(events.TurnCompleted, "c", map[string]interface{}{
		"turn": entity.Turn{Content: "fallback"},
	}))

	assert.Equal(t, "\n── Answer ──\nfallback\n", out.String())
}
