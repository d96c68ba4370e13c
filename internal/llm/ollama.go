package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultOllamaBaseURL = "http://127.0.0.1:11434"
	DefaultModel         = "exaone3.5:2.4b"
)

// Generator sends a single prompt and returns the raw completion text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OllamaConfig selects the local model server and sampling temperature.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
}

// OllamaGenerator talks to an Ollama server in JSON output mode.
type OllamaGenerator struct {
	client      *ollama.LLM
	model       string
	temperature float64
}

func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = DefaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init ollama client: %w", err)
	}

	return &OllamaGenerator{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

func (g *OllamaGenerator) Model() string { return g.model }

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt,
		llms.WithTemperature(g.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generate (%s): %w", g.model, err)
	}
	return out, nil
}
