package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"

	"github.com/groundcheck/paperagent/agent"
	"github.com/groundcheck/paperagent/checkpoint"
	"github.com/groundcheck/paperagent/document"
)

func main() {
	conf := flag.String("config", "config.json", "path to config file")
	docPath := flag.String("doc", "", "path to a plain-text document to analyze")
	flag.Parse()
	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *docPath == "" {
		log.Fatal("pass -doc with a text file to analyze")
	}
	err = startApp(context.Background(), config, *docPath)
	if err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func startApp(ctx context.Context, config *Config, docPath string) error {
	slog.SetLogLoggerLevel(slog.LevelInfo)

	text, err := os.ReadFile(docPath)
	if err != nil {
		return err
	}
	doc := document.New(string(text))

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return err
	}

	flow, err := agent.NewToolBasedFlow(ctx, doc, cm,
		agent.WithCheckpointStore(checkpoint.NewMemory()),
	)
	if err != nil {
		return err
	}
	qaAgent := agent.NewAgent(
		"PaperQA",
		"Answers questions about a document, verifying every answer against the text before returning it",
		flow,
		agent.NewMemoryStateStore(),
	)
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: qaAgent,
	})

	chatCtx := agent.WithSessionID(ctx, "paperqa")
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Loaded %q (%d chunks). Ask a question, or press Enter for a summary.\n", docPath, doc.NumChunks())
	for {
		fmt.Print("you: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("input closed, exiting.")
			break
		}
		input = strings.TrimSpace(input)
		iter := runner.Run(chatCtx, []*schema.Message{schema.UserMessage(input)})
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			fmt.Printf("\nassistant: %v\n======\n", msg.Content)
		}
	}
	return nil
}
