package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"chat-lens-be/internal/entity"
	"chat-lens-be/pkg/events"
	"chat-lens-be/pkg/rag/state"

	"github.com/fatih/color"
)

var stageTitles = map[state.Stage]string{
	state.StageDatabase: "Database",
	state.StageVector:   "Documents",
	state.StageWeb:      "Web",
	state.StageSummary:  "Answer",
}

// terminalSink renders turn events as they stream. Chunk events carry the
// whole text so far; only the new suffix is printed.
type terminalSink struct {
	mu       sync.Mutex
	out      io.Writer
	thoughts bool
	stage    state.Stage
	printed  int
}

func newTerminalSink(out io.Writer, thoughts bool) *terminalSink {
	return &terminalSink{out: out, thoughts: thoughts}
}

func (s *terminalSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := event.Payload()
	switch event.EventType() {
	case events.StageStarted:
		s.stage, _ = data["stage"].(state.Stage)
		s.printed = 0
		if s.visible() {
			fmt.Fprintf(s.out, "\n%s\n", color.CyanString("── %s ──", stageTitles[s.stage]))
		}

	case events.StageChunk:
		text, _ := data["text"].(string)
		if s.visible() && len(text) > s.printed {
			fmt.Fprint(s.out, text[s.printed:])
		}
		s.printed = len(text)

	case events.TurnCompleted:
		turn, _ := data["turn"].(entity.Turn)
		if s.printed == 0 {
			// empty summary, the fallback content was used
			fmt.Fprintf(s.out, "%s", turn.Content)
		}
		fmt.Fprintln(s.out)
		if len(turn.Sources) > 0 {
			fmt.Fprintln(s.out, color.YellowString("\nSources:"))
			for _, src := range turn.Sources {
				fmt.Fprintf(s.out, "  - %s\n", src)
			}
		}

	case events.TurnFailed:
		msg, _ := data["message"].(string)
		fmt.Fprintf(s.out, "\n%s\n", color.RedString(msg))
	}
	return nil
}

func (s *terminalSink) visible() bool {
	return s.thoughts || s.stage == state.StageSummary
}
