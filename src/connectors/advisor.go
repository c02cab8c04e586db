package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
)

// ErrAdvisorNotConfigured means ADVISOR_API_KEY is unset; consults are
// skipped without counting as failures worth alerting on.
var ErrAdvisorNotConfigured = errors.New("advisor api key not configured")

const advisorSystemPrompt = "You are a quantitative strategy advisor for an automated crypto spot " +
	"trading bot. Reply with a single JSON object and nothing else, using exactly these fields: " +
	"\"strategyName\" (string), \"params\" (object containing only the numeric strategy fields you " +
	"want to change, using their snake_case names), \"notes\" (string), \"confidence\" (number " +
	"between 0 and 1). Every parameter value must stay inside the bounds listed in the user message. " +
	"Propose conservative changes; omit params you would keep unchanged."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AdvisorClient calls an OpenAI-compatible chat-completion endpoint for
// strategy suggestions. No retries: a failed consult waits for the next
// window.
type AdvisorClient struct {
	http   *resty.Client
	model  string
	apiKey string
}

func NewAdvisorClient() *AdvisorClient {
	cfg := GetConfig()

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.AdvisorBaseURL, "/")).
		SetTimeout(cfg.AdvisorTimeout)

	return &AdvisorClient{
		http:   httpClient,
		model:  cfg.AdvisorModel,
		apiKey: cfg.AdvisorAPIKey,
	}
}

// Suggest sends the tuning payload and parses the strict-JSON suggestion
// out of the completion. Schema violations are returned as errors so the
// caller keeps its current config.
func (c *AdvisorClient) Suggest(ctx context.Context, payload string) (*model.StrategySuggestion, error) {
	if c.apiKey == "" {
		return nil, ErrAdvisorNotConfigured
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: advisorSystemPrompt},
			{Role: "user", Content: payload},
		},
		Temperature:    0.2,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("advisor request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("advisor status %d: %s", resp.StatusCode(), truncateBody(resp.String()))
	}
	if out.Error != nil {
		return nil, fmt.Errorf("advisor error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("advisor returned no choices")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)

	var suggestion model.StrategySuggestion
	if err := json.Unmarshal([]byte(content), &suggestion); err != nil {
		return nil, fmt.Errorf("advisor content is not valid JSON: %w", err)
	}
	if err := suggestion.Validate(); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"strategy":   suggestion.StrategyName,
		"confidence": suggestion.Confidence,
	}).Info("Received strategy suggestion")
	return &suggestion, nil
}

func truncateBody(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
