package segment

import "context"

// Storer data persistence
type Storer interface {
	Segment() SegmentStorer
}

// Cascader 删除片段时清理下游数据（区域、描述）
type Cascader interface {
	DelBySegments(ctx context.Context, segmentIDs []int64) error
}

// Core business domain
type Core struct {
	store    Storer
	cascades []Cascader
}

type Option func(*Core)

// WithCascade 按注册顺序依次清理下游数据
func WithCascade(c ...Cascader) Option {
	return func(core *Core) {
		core.cascades = append(core.cascades, c...)
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
		if err := fn.DelBySegments(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}
