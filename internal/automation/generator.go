package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// systemPrompt instructs the model to return a single automation as bare YAML.
const systemPrompt = `You are an expert Home Assistant automation creator. Your task is to convert natural language descriptions into valid Home Assistant automation YAML.

IMPORTANT: DO NOT ASK ANY QUESTIONS. Make reasonable assumptions about entity names and values when they are not given.

Return ONLY the YAML for a single automation with no explanations, no markdown and no code fences.

Use this structure:
id: unique_automation_id
alias: Short descriptive name
description: What the automation does
triggers:
  - trigger: state
    id: descriptive_trigger_id
    entity_id: binary_sensor.example
    to: "on"
conditions: []
actions:
  - action: light.turn_on
    target:
      entity_id: light.example

Give every trigger a short descriptive id.`

const userPromptFormat = "Create a Home Assistant automation for: %s"

// maxPromptEntities caps the entity list sent with a prompt.
const maxPromptEntities = 200

// LLMGenerator generates automations with an OpenAI-compatible chat model.
type LLMGenerator struct {
	llm         llms.Model
	model       string
	temperature float64
}

// LLMOptions configures NewLLMGenerator.
type LLMOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// NewLLMGenerator creates a generator. Returns ErrNotConfigured without an
// API key.
func NewLLMGenerator(opts LLMOptions) (*LLMGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithModel(opts.Model),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return newGenerator(llm, opts.Model, opts.Temperature), nil
}

func newGenerator(llm llms.Model, model string, temperature float64) *LLMGenerator {
	return &LLMGenerator{llm: llm, model: model, temperature: temperature}
}

// Model returns the configured model name.
func (g *LLMGenerator) Model() string {
	return g.model
}

// Generate asks the model for an automation matching description.
func (g *LLMGenerator) Generate(ctx context.Context, description string, entities []string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(description, entities)),
	}

	resp, err := g.llm.GenerateContent(ctx, messages, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", fmt.Errorf("generating automation: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// userPrompt builds the request text, listing known entities when there are any.
func userPrompt(description string, entities []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, userPromptFormat, description)
	if len(entities) == 0 {
		return b.String()
	}
	if len(entities) > maxPromptEntities {
		entities = entities[:maxPromptEntities]
	}
	b.WriteString("\n\nAvailable entities:")
	for _, e := range entities {
		b.WriteString("\n- ")
		b.WriteString(e)
	}
	return b.String()
}
