// Package testcases holds live end-to-end tests that run the loop against a
// real model. They are skipped unless PAPERAGENT_RUN_LIVE_TESTS=1 and a
// config.json with credentials is present in the repository root.
package testcases

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
)

const samplePaper = `Attention Is All You Need.

We propose the Transformer, a model architecture relying entirely on an
attention mechanism to draw global dependencies between input and output,
dispensing with recurrence and convolutions entirely. On the WMT 2014
English-to-German translation task the big Transformer model achieves a BLEU
score of 28.4, improving over the existing best results by over 2 BLEU. On
the WMT 2014 English-to-French translation task it achieves a BLEU score of
41.8 after training for 3.5 days on eight GPUs. Training used the Adam
optimizer with a custom learning rate schedule and label smoothing of 0.1.`

type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Config
	err = json.Unmarshal(file, &conf)
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func InitChatModel(t *testing.T) *openai.ChatModel {
	if os.Getenv("PAPERAGENT_RUN_LIVE_TESTS") != "1" {
		t.Skip("set PAPERAGENT_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}

	ctx := context.Background()
	conf, err := loadConfig("../config.json")
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.APIKey == "" {
		t.Skip("config.json api_key is empty")
		return nil
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		t.Fatalf("create chat model: %v", err)
	}
	return cm
}
