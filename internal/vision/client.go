// Package vision extracts structured supply lists from photographed pages
// using a multimodal AI provider.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gradecart/gradecart/internal/config"
	apperrors "github.com/gradecart/gradecart/internal/errors"
)

const instruction = `Please analyze this school supply list image and extract the following information: school name, school year, teacher name, and all supply items. If there are multiple grade lists, please identify each grade and its associated items separately. Format your response as a JSON object with the following structure: { "schoolName": string, "year": string, "teacherName": string, "gradeLists": [{ "grade": string, "supplyItems": [{ "name": string, "quantity": number, "originalText": string }] }] }. If this is not a school supply list image, please respond with { "error": "This does not appear to be a school supply list." }`

// Client calls the extraction provider's messages API
type Client struct {
	cfg     config.VisionConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new extraction client
func NewClient(cfg config.VisionConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60
	}
	rpm := cfg.RPM
	if rpm <= 0 {
		rpm = 60
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:  logger,
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Extract sends one image payload (base64, no data-URL prefix) to the
// provider and interprets the reply. Transport failures are retried once
// (configurable); interpretation failures are never retried.
func (c *Client) Extract(ctx context.Context, imagePayload string) (*ExtractionResult, error) {
	if c.cfg.APIKey == "" {
		return nil, apperrors.ErrProviderNotReady
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrExtractTransport.Code, "rate limiter interrupted")
	}

	attempts := c.cfg.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying extraction call",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}

		text, err := c.sendMessage(ctx, imagePayload)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				// Cancellation counts as a transport failure, not a retry opportunity
				break
			}
			continue
		}

		result, err := Interpret(text)
		if err != nil {
			// Content-level failure: log the raw reply for prompt drift diagnosis
			if apperrors.GetCode(err) == apperrors.ErrUnreadableReply.Code {
				c.logger.Error("Unreadable extraction reply", zap.String("raw_reply", text))
			}
			return nil, err
		}
		return result, nil
	}

	return nil, apperrors.Wrap(lastErr, apperrors.ErrExtractTransport.Code, "extraction provider unreachable")
}

// sendMessage performs one messages API round trip and returns the reply text
func (c *Client) sendMessage(ctx context.Context, imagePayload string) (string, error) {
	reqBody := messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{
						Type: "image",
						Source: &imageSource{
							Type:      "base64",
							MediaType: "image/jpeg",
							Data:      imagePayload,
						},
					},
					{
						Type: "text",
						Text: instruction,
					},
				},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result messageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	c.logger.Debug("Extraction call completed",
		zap.Duration("latency", time.Since(start)),
		zap.Int("input_tokens", result.Usage.InputTokens),
		zap.Int("output_tokens", result.Usage.OutputTokens),
	)

	return result.Content[0].Text, nil
}
