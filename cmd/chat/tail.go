package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-lens-be/pkg/events"
	pktNats "chat-lens-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// TailCommand returns the tail command
func TailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Follow finished and failed turns exported by the service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Value:   "nats://localhost:4222",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Event type to follow (TURN_COMPLETED, TURN_FAILED or * for both)",
				Value: "*",
			},
		},
		Action: runTail,
	}
}

func runTail(c *cli.Context) error {
	sub, err := pktNats.NewSubscriber(c.String("nats-url"))
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan("Following %s events, Ctrl-C to stop", c.String("type"))
	return sub.Subscribe(ctx, c.String("type"), "", func(_ context.Context, event events.Event) error {
		printExported(event)
		return nil
	})
}

func printExported(event events.Event) {
	data := event.Payload()
	conversationID, _ := data["conversation_id"].(string)

	switch event.EventType() {
	case events.TurnCompleted:
		turn, _ := data["turn"].(map[string]interface{})
		content, _ := turn["content"].(string)
		fmt.Printf("%s %s\n%s\n\n", color.GreenString("✔"), conversationID, content)
	case events.TurnFailed:
		msg, _ := data["error"].(string)
		fmt.Printf("%s %s %s\n\n", color.RedString("✘"), conversationID, msg)
	default:
		fmt.Printf("%s %s\n", event.EventType(), conversationID)
	}
}
