package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/foodia/backend/config"
	"github.com/foodia/backend/internal/models"
)

// ErrEmptyCompletion is returned when the model responds without a usable
// completion. Treated as an upstream failure, not malformed output.
var ErrEmptyCompletion = errors.New("no completion returned by model")

const chefSystemPrompt = "You are a professional Chef with high creativity and expertise. Respond ONLY with JSON."

// RecipeData is the structure the model is asked to emit and the pipeline
// expects back after repair and parsing.
type RecipeData struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	CookingTime     int                    `json:"cookingTime"`
	Difficulty      string                 `json:"difficulty"`
	CostLevel       string                 `json:"costLevel"`
	Cuisine         string                 `json:"cuisine"`
	NutritionalInfo models.NutritionalInfo `json:"nutritionalInfo"`
	Ingredients     []models.Ingredient    `json:"ingredients"`
	Steps           []models.Step          `json:"steps"`
}

// Message represents a message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a chat-completions request
type Request struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Temperature    float64           `json:"temperature,omitempty"`
}

// LLMService handles interactions with the chat-completions API
type LLMService struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

// NewLLMService creates a new LLMService instance
func NewLLMService(cfg *config.Config) (*LLMService, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY or OPENAI_API_KEY_FILE must be set")
	}

	return &LLMService{
		apiKey: cfg.OpenAIAPIKey,
		apiURL: cfg.OpenAIAPIURL,
		model:  cfg.OpenAIModel,
		client: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

// GenerateRecipe sends the rendered prompt to the model and returns the
// repaired, parsed recipe. Transport errors and empty completions are
// upstream failures; unparseable content is ErrMalformedOutput.
func (s *LLMService) GenerateRecipe(ctx context.Context, prompt string) (*RecipeData, error) {
	raw, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseRecipeData(raw)
}

func (s *LLMService) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := Request{
		Model: s.model,
		Messages: []Message{
			{Role: "system", Content: chefSystemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.9,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}

	return result.Choices[0].Message.Content, nil
}
