package service

import (
	"bytes"
	"context"
	"elearn_backend/internal/config"
	"elearn_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrAINotConfigured = errors.New("AI service is not configured")

type AIService struct {
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const defaultTutorPrompt = "You are a patient tutor on an e-learning platform. Answer the student's question clearly and stay on the topic of their course."

// Chat 调用 OpenAI 兼容接口，history 按时间正序
func (s *AIService) Chat(ctx context.Context, systemPrompt string, history []AIChatMessage, prompt string) (string, error) {
	if s.config.BaseURL == "" {
		return "", ErrAINotConfigured
	}

	start := time.Now()
	reply, err := s.chat(ctx, systemPrompt, history, prompt)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	monitoring.AIChatDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return reply, err
}

func (s *AIService) chat(ctx context.Context, systemPrompt string, history []AIChatMessage, prompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = defaultTutorPrompt
	}
	messages := make([]AIChatMessage, 0, len(history)+2)
	messages = append(messages, AIChatMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, AIChatMessage{Role: "user", Content: prompt})

	jsonData, err := json.Marshal(ChatCompletionRequest{
		Model:    s.config.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) > 0 {
		return result.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("AI returned no choices")
}
