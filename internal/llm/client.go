// Package llm provides an OpenAI-compatible chat completion client with
// multimodal prompt parts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Part is one element of an ordered prompt. A part carries text, an
// image URL, or both; image parts keep their description alongside the
// image itself.
type Part struct {
	Text     string
	ImageURL string
}

// Config configures the chat completion client
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible /chat/completions endpoint
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient creates a new chat completion client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type contentEntry struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

// Generate sends the ordered prompt parts as a single user message and
// returns the model's reply text.
func (c *Client) Generate(ctx context.Context, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("empty prompt")
	}

	content := make([]contentEntry, 0, len(parts))
	for _, part := range parts {
		if part.Text != "" {
			content = append(content, contentEntry{Type: "text", Text: part.Text})
		}
		if part.ImageURL != "" {
			content = append(content, contentEntry{Type: "image_url", ImageURL: &imageRef{URL: part.ImageURL}})
		}
	}

	body, err := json.Marshal(struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string         `json:"role"`
			Content []contentEntry `json:"content"`
		} `json:"messages"`
	}{
		Model: c.model,
		Messages: []struct {
			Role    string         `json:"role"`
			Content []contentEntry `json:"content"`
		}{{Role: "user", Content: content}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion failed: %s", resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	return out.Choices[0].Message.Content, nil
}

// GenerateText is a convenience for single-part text prompts
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.Generate(ctx, []Part{{Text: prompt}})
}
