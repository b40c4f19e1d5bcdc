package region

import (
	"context"
)

// Storer data persistence
type Storer interface {
	Region() RegionStorer
}

// Cascader 删除区域时清理下游的描述数据
type Cascader interface {
	DelByRegions(ctx context.Context, regionIDs []int64) error
}

// SegmentRequest 提交给分割服务的请求，均为已编码的图片
type SegmentRequest struct {
	BrushMask  []byte
	FrameImage []byte // 可选
}

// SegmentResult 分割服务返回的概率掩码
type SegmentResult struct {
	Mask       []byte
	Confidence float64
	Message    string
}

// Segmenter 外部分割服务 (SAM2 一类)
type Segmenter interface {
	Segment(ctx context.Context, in *SegmentRequest) (*SegmentResult, error)
}

// Core business domain
type Core struct {
	store     Storer
	cascades  []Cascader
	segmenter Segmenter
}

type Option func(*Core)

// WithCascade 删除区域时按顺序调用
func WithCascade(c ...Cascader) Option {
	return func(core *Core) {
		core.cascades = append(core.cascades, c...)
	}
}

// WithSegmenter 注入分割服务
func WithSegmenter(s Segmenter) Option {
	return func(c *Core) {
		c.segmenter = s
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Core) cascade(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, fn := range c.cascades {
		if err := fn.DelByRegions(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}
