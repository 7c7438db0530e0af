package service

import (
	"fmt"
	"strings"

	"chat-lens-be/internal/constant"
	"chat-lens-be/internal/entity"

	"github.com/google/uuid"
)

// RenderMarkdown writes a transcript with each assistant turn's stage
// thoughts and sources under it.
func RenderMarkdown(conversationId uuid.UUID, turns []entity.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n", conversationId)

	for _, t := range turns {
		b.WriteString("\n")
		switch t.Role {
		case constant.ChatMessageRoleUser:
			fmt.Fprintf(&b, "## You (%s)\n\n%s\n", t.CreatedAt.Format("2006-01-02 15:04:05"), t.Content)
		default:
			fmt.Fprintf(&b, "## Assistant (%s)\n\n%s\n", t.CreatedAt.Format("2006-01-02 15:04:05"), t.Content)
			writeThoughts(&b, t.Thoughts)
			writeSources(&b, t.Sources)
		}
	}
	return b.String()
}

func writeThoughts(b *strings.Builder, th *entity.Thoughts) {
	if th == nil {
		return
	}
	sections := []struct {
		title string
		text  string
	}{
		{"Database", th.Database},
		{"Documents", th.Vector},
		{"Web", th.Web},
	}
	for _, s := range sections {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		fmt.Fprintf(b, "\n### %s\n\n%s\n", s.title, s.text)
	}
}

func writeSources(b *strings.Builder, sources []string) {
	if len(sources) == 0 {
		return
	}
	b.WriteString("\n### Sources\n\n")
	for _, src := range sources {
		fmt.Fprintf(b, "- %s\n", src)
	}
}
