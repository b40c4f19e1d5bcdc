// Package dam 调用 OpenAI 兼容接口生成区域描述与翻译
package dam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel DAM 服务注册的模型名
const DefaultModel = "describe_anything_model"

// ErrEmptyResponse 服务未返回任何候选
var ErrEmptyResponse = errors.New("dam: empty response")

const (
	// VisualPrompt 描述掩码区域
	VisualPrompt = "\nDescribe the masked region in detail. Focus on the visual appearance, shape, color, texture, and any distinguishing features of the object across the video frames."
	// ContextualPrompt 描述整个场景
	ContextualPrompt = "\nDescribe the overall scene in this video segment. Focus on the context, environment, spatial relationships between objects, and what is happening across the frames."
)

type Config struct {
	URL     string // 不含 /chat/completions
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client Describe Anything Model 客户端
type Client struct {
	cfg Config
	cli *openai.Client
}

func newOpenAI(url, key string, timeout time.Duration) *openai.Client {
	c := openai.DefaultConfig(key)
	c.BaseURL = strings.TrimRight(url, "/")
	c.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(c)
}

// NewClient timeout 默认 180s
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	return &Client{cfg: cfg, cli: newOpenAI(cfg.URL, cfg.APIKey, cfg.Timeout)}
}

// Describe images 为 data URL，顺序即帧序
func (c *Client) Describe(ctx context.Context, images []string, prompt string) (string, error) {
	if c.cfg.URL == "" {
		return "", fmt.Errorf("dam: service url is empty")
	}
	if len(images) == 0 {
		return "", fmt.Errorf("dam: no images")
	}
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img},
		})
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: prompt})

	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens:   512,
		Temperature: 0.2,
		TopP:        0.5,
	})
	if err != nil {
		return "", fmt.Errorf("dam: %w", err)
	}
	return firstChoice(resp)
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
