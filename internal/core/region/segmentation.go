package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/pkg/mask"
)

// SegmentOutput 分割结果
type SegmentOutput struct {
	Mask       *mask.Mask
	Confidence float64
	Message    string
}

// Segment 将会话笔迹提交给分割服务，结果经缩放与二值化后作为会话的待保存掩码
// 失败时笔迹保持不变，可重试或直接用笔迹保存
func (c Core) Segment(ctx context.Context, s *Session, frame []byte) (*SegmentOutput, error) {
	if c.segmenter == nil {
		return nil, fmt.Errorf("%w: segmentation service not configured", bz.ErrExternalService)
	}
	reqCtx, gen, brush, err := s.BeginSegmentation(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.segmenter.Segment(reqCtx, &SegmentRequest{BrushMask: brush, FrameImage: frame})
	if err != nil {
		if s.FailSegmentation(gen) {
			return nil, fmt.Errorf("%w: generation %d", bz.ErrStale, gen)
		}
		slog.WarnContext(ctx, "segmentation failed", "segment_id", s.SegmentID, "err", err)
		return nil, fmt.Errorf("%w: %s", bz.ErrExternalService, err)
	}

	prob, err := mask.Decode(res.Mask)
	if err == nil {
		var m *mask.Mask
		if m, err = mask.FromExternal(prob, s.W, s.H); err == nil {
			if err := s.AcceptSegmentation(gen, m); err != nil {
				return nil, err
			}
			return &SegmentOutput{Mask: m, Confidence: res.Confidence, Message: res.Message}, nil
		}
	}
	if s.FailSegmentation(gen) {
		return nil, fmt.Errorf("%w: generation %d", bz.ErrStale, gen)
	}
	return nil, fmt.Errorf("%w: malformed mask: %w", bz.ErrExternalService, err)
}

// SaveSessionInput 保存时可覆盖标签与颜色
type SaveSessionInput struct {
	Label     string   `json:"label"`
	Color     string   `json:"color"`
	FrameTime *float64 `json:"frame_time"`
}

// SaveSession 新建或整体替换会话对应的区域
// 保存失败时会话内容保持不变
func (c Core) SaveSession(ctx context.Context, s *Session, in *SaveSessionInput) (*Region, error) {
	result, brush, err := s.Result()
	if err != nil {
		return nil, err
	}
	label := in.Label
	if label == "" {
		label = s.Label()
	}
	frameTime := s.FrameTime()
	if in.FrameTime != nil {
		frameTime = *in.FrameTime
	}

	regionID := s.RegionID()
	if regionID == 0 {
		r, err := c.AddRegion(ctx, &AddRegionInput{
			SegmentID: s.SegmentID,
			Label:     label,
			Color:     in.Color,
			FrameTime: frameTime,
			Mask:      result,
			BrushMask: brush,
		})
		if err != nil {
			return nil, err
		}
		s.Saved(true)
		return r, nil
	}

	r, err := c.EditRegion(ctx, &EditRegionInput{
		Label:     label,
		Color:     in.Color,
		FrameTime: frameTime,
		Mask:      result,
		BrushMask: brush,
	}, regionID)
	if err != nil {
		if errors.Is(err, bz.ErrNotFound) {
			slog.WarnContext(ctx, "editing region was deleted", "region_id", regionID)
		}
		return nil, err
	}
	s.Saved(false)
	return r, nil
}
