package adapter

import (
	"context"
	"log/slog"

	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/pkg/sam"
)

var _ region.Segmenter = (*SAMAdapter)(nil)

// SAMAdapter 实现 region.Segmenter 接口
// 服务不可用且开启 Fallback 时使用本地平滑结果
type SAMAdapter struct {
	engine sam.Engine
}

// NewSAMAdapter 返回 region.Segmenter 接口
func NewSAMAdapter(engine sam.Engine) region.Segmenter {
	return &SAMAdapter{engine: engine}
}

// Segment 调用分割服务
func (a *SAMAdapter) Segment(ctx context.Context, in *region.SegmentRequest) (*region.SegmentResult, error) {
	cfg := a.engine.Config()
	if cfg.URL == "" || len(in.FrameImage) == 0 {
		if !cfg.Fallback {
			return a.call(ctx, in)
		}
		return toResult(sam.Fallback(in.BrushMask))
	}

	res, err := a.call(ctx, in)
	if err == nil || !cfg.Fallback || ctx.Err() != nil {
		return res, err
	}
	slog.WarnContext(ctx, "segmentation service unavailable, use fallback", "err", err)
	return toResult(sam.Fallback(in.BrushMask))
}

func (a *SAMAdapter) call(ctx context.Context, in *region.SegmentRequest) (*region.SegmentResult, error) {
	return toResult(a.engine.SegmentObject(ctx, in.BrushMask, in.FrameImage))
}

func toResult(res *sam.Result, err error) (*region.SegmentResult, error) {
	if err != nil {
		return nil, err
	}
	return &region.SegmentResult{Mask: res.Mask, Confidence: res.Confidence, Message: res.Message}, nil
}
