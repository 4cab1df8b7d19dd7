package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/d60-Lab/fansync/config"
)

const (
	nudgePrompt     = "Write a short, polite thank-you and upsell message for a fan who just tipped over $100. Address them warmly."
	sentimentPrompt = "Rate the sentiment of the user's message on a scale from -1 (very negative) to 1 (very positive). Reply with the number only."
)

// ErrNotFinite 情绪分数为 NaN 或 Inf
var ErrNotFinite = errors.New("llm: score is not a finite number")

// ErrEmptyCompletion 模型返回了空内容
var ErrEmptyCompletion = errors.New("llm: empty completion")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client OpenAI 兼容的 chat completions 客户端
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.NudgeTemperature,
		maxTokens:   cfg.NudgeMaxTokens,
		http:        &http.Client{Timeout: timeout},
	}
}

// WriteNudge 生成打赏感谢 + 追加销售文案
func (c *Client) WriteNudge(ctx context.Context, amount float64) (string, error) {
	return c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: nudgePrompt},
			{Role: "user", Content: fmt.Sprintf("The fan tipped $%.2f.", amount)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
}

// RateSentiment 返回 [-1, 1] 的情绪分
func (c *Client) RateSentiment(ctx context.Context, text string) (float64, error) {
	out, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: sentimentPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens:   5,
		Temperature: 0,
	})
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.Trim(out, " .\n"), 64)
	if err != nil {
		return 0, fmt.Errorf("llm: parse sentiment %q: %w", out, err)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("llm: parse sentiment %q: %w", out, ErrNotFinite)
	}
	return math.Max(-1, math.Min(1, score)), nil
}

func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("llm decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
