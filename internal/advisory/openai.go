package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/climateguardian/guardian/internal/models"
)

const systemPrompt = `You write short public emergency advisories for residents.
Use plain language, at most 80 words. State the hazard, the affected area,
how long the warning lasts and one protective action. Do not speculate
beyond the facts given.`

// OpenAIConfig holds configuration for the OpenAI drafter.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // optional, for compatible endpoints
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIDrafter drafts advisories with a chat completion model.
type OpenAIDrafter struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIDrafter creates a drafter. An API key is required.
func NewOpenAIDrafter(config OpenAIConfig) (*OpenAIDrafter, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 300
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIDrafter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name implements Drafter.
func (d *OpenAIDrafter) Name() string { return "openai:" + d.config.Model }

// Draft implements Drafter.
func (d *OpenAIDrafter) Draft(ctx context.Context, alert models.EmergencyAlert) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(apiCtx, d.request(userPrompt(alert)))
	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai returned an empty advisory")
	}
	return text, nil
}

func (d *OpenAIDrafter) request(prompt string) openai.ChatCompletionRequest {
	// Reasoning models reject temperature and system messages.
	model := strings.ToLower(d.config.Model)
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		return openai.ChatCompletionRequest{
			Model: d.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: systemPrompt + "\n\n" + prompt},
			},
			MaxCompletionTokens: d.config.MaxTokens,
		}
	}

	return openai.ChatCompletionRequest{
		Model:       d.config.Model,
		Temperature: d.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: d.config.MaxTokens,
	}
}

func userPrompt(alert models.EmergencyAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", alert.Title)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	if alert.RiskType != "" {
		fmt.Fprintf(&b, "Hazard: %s (risk score %d/100)\n", alert.RiskType, alert.RiskScore)
	}
	fmt.Fprintf(&b, "Location: %s (%.4f, %.4f), radius %.1f km\n",
		alert.Location.Name, alert.Location.Latitude, alert.Location.Longitude, alert.RadiusKm)
	if alert.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", alert.Description)
	}
	fmt.Fprintf(&b, "Expires: %s\n", alert.ExpiresAt.UTC().Format(time.RFC3339))
	if alert.ContactInfo != "" {
		fmt.Fprintf(&b, "Contact: %s\n", alert.ContactInfo)
	}
	return b.String()
}
