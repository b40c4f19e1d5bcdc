package dam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Direction 翻译方向
type Direction string

const (
	EnToVi Direction = "en_to_vi"
	ViToEn Direction = "vi_to_en"
)

const (
	DefaultPromptEnToVi  = "Translate the following English text to Vietnamese. Only return the translation, nothing else.\n\n{{text}}"
	DefaultPromptViToEn  = "Translate the following Vietnamese text to English. Only return the translation, nothing else.\n\n{{text}}"
	DefaultPromptCombine = "Combine the following captions into a single, coherent description. Only return the combined text, nothing else.\n\nCaptions: {{captions}}"
)

type TranslatorConfig struct {
	URL           string
	APIKey        string
	Model         string
	PromptEnToVi  string
	PromptViToEn  string
	PromptCombine string
	Timeout       time.Duration
}

// Translator 通过通用对话模型翻译与合并描述
type Translator struct {
	cfg TranslatorConfig
	cli *openai.Client
}

func NewTranslator(cfg TranslatorConfig) *Translator {
	if cfg.PromptEnToVi == "" {
		cfg.PromptEnToVi = DefaultPromptEnToVi
	}
	if cfg.PromptViToEn == "" {
		cfg.PromptViToEn = DefaultPromptViToEn
	}
	if cfg.PromptCombine == "" {
		cfg.PromptCombine = DefaultPromptCombine
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Translator{cfg: cfg, cli: newOpenAI(cfg.URL, cfg.APIKey, cfg.Timeout)}
}

// Configured 未配置模型时上层直接报错
func (t *Translator) Configured() bool {
	return t.cfg.URL != "" && t.cfg.Model != ""
}

// Translate 空文本直接返回空
func (t *Translator) Translate(ctx context.Context, text string, dir Direction) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	var tpl string
	switch dir {
	case EnToVi:
		tpl = t.cfg.PromptEnToVi
	case ViToEn:
		tpl = t.cfg.PromptViToEn
	default:
		return "", fmt.Errorf("dam: unknown direction %q", dir)
	}
	return t.complete(ctx, strings.ReplaceAll(tpl, "{{text}}", text))
}

// Combine 合并多条描述
func (t *Translator) Combine(ctx context.Context, captions []string) (string, error) {
	items := make([]string, 0, len(captions))
	for _, c := range captions {
		if c = strings.TrimSpace(c); c != "" {
			items = append(items, c)
		}
	}
	if len(items) == 0 {
		return "", nil
	}
	return t.complete(ctx, strings.ReplaceAll(t.cfg.PromptCombine, "{{captions}}", strings.Join(items, "\n")))
}

func (t *Translator) complete(ctx context.Context, prompt string) (string, error) {
	if !t.Configured() {
		return "", fmt.Errorf("dam: translator not configured")
	}
	resp, err := t.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   2048,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("dam: %w", err)
	}
	return firstChoice(resp)
}
