package caption

import (
	"context"

	"github.com/gowvp/annotator/pkg/dam"
)

// Storer data persistence
type Storer interface {
	Caption() CaptionStorer
}

// Describer 图像描述服务
type Describer interface {
	Describe(ctx context.Context, images []string, prompt string) (string, error)
}

// Translator 翻译与合并描述
type Translator interface {
	Translate(ctx context.Context, text string, dir dam.Direction) (string, error)
	Combine(ctx context.Context, captions []string) (string, error)
}

// Core business domain
type Core struct {
	store      Storer
	describer  Describer
	translator Translator
	frames     FrameOptions
}

type Option func(*Core)

func WithDescriber(d Describer) Option {
	return func(c *Core) {
		c.describer = d
	}
}

func WithTranslator(t Translator) Option {
	return func(c *Core) {
		c.translator = t
	}
}

// WithFrameOptions 帧数与缩放限制
func WithFrameOptions(o FrameOptions) Option {
	return func(c *Core) {
		c.frames = o
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store, frames: FrameOptions{Count: DefaultFrameCount}}
	for _, opt := range opts {
		opt(&c)
	}
	if c.frames.Count <= 0 {
		c.frames.Count = DefaultFrameCount
	}
	return c
}
