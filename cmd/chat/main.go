package main

import (
	"log"
	"os"
	"time"

	"chat-lens-be/internal/config"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "chat-lens",
		Usage: "Ask the streaming RAG pipeline from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Upstream AI service base URL",
				Value:   "http://localhost:8000",
				EnvVars: []string{"CHATBOT_API_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "api-path",
				Usage:   "Path prefix of the stream endpoints",
				Value:   "/chatbot",
				EnvVars: []string{"CHATBOT_API_PATH"},
			},
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Value:   "English",
				EnvVars: []string{"CHATBOT_LANGUAGE"},
			},
			&cli.DurationFlag{
				Name:  "stage-timeout",
				Usage: "Deadline for each stage, 0 disables it",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:    "thoughts",
				Aliases: []string{"t"},
				Usage:   "Print the database, document and web stages as they stream",
				Value:   true,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Value: "logs/chat-cli.log",
			},
		},
		Commands: []*cli.Command{
			AskCommand(),
			TailCommand(),
		},
		Action: runAsk,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func chatbotConfig(c *cli.Context) config.ChatbotConfig {
	return config.ChatbotConfig{
		BaseURL:         c.String("base-url"),
		APIPath:         c.String("api-path"),
		Language:        c.String("language"),
		StageTimeout:    c.Duration("stage-timeout"),
		FallbackContent: config.DefaultFallbackContent,
	}
}
