package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/repository/memory"
	"chat-lens-be/pkg/rag/executor"
	"chat-lens-be/pkg/stream"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// AskCommand returns the ask command
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask one question, or start an interactive session when none is given",
		ArgsUsage: "[QUESTION]",
		Action:    runAsk,
	}
}

func runAsk(c *cli.Context) error {
	cfg := chatbotConfig(c)
	log := logger.NewIsolatedLogger(c.String("log-file"))
	defer log.Sync()

	conversations := memory.NewConversationRepository(24 * time.Hour)
	conv := conversations.Create()

	orch := executor.NewOrchestrator(
		conv.Id,
		stream.NewFetcher(cfg.StreamURL(), log),
		conversations,
		newTerminalSink(os.Stdout, c.Bool("thoughts")),
		log,
		executor.Options{
			Language:        cfg.Language,
			StageTimeout:    cfg.StageTimeout,
			FallbackContent: cfg.FallbackContent,
		},
	)

	if c.NArg() > 0 {
		return ask(c.Context, orch, strings.Join(c.Args().Slice(), " "))
	}

	color.Cyan("Chat Lens (%s). Empty line or Ctrl-D to quit, Ctrl-C cancels a running answer.", cfg.Language)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.GreenString("\n> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			return nil
		}
		if err := ask(c.Context, orch, query); err != nil {
			color.Red("%v", err)
		}
	}
}

func ask(parent context.Context, orch *executor.Orchestrator, query string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	_, err := orch.Submit(ctx, query, "")
	return err
}
