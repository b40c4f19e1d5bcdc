package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/annotator/internal/core/caption"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/internal/core/segment"
	"github.com/ixugo/goddd/pkg/web"
)

// ExportAPI 整个视频的标注结果
type ExportAPI struct {
	segments segment.Core
	regions  region.Core
	captions caption.Core
}

func NewExportAPI(segments segment.Core, regions region.Core, captions caption.Core) ExportAPI {
	return ExportAPI{segments: segments, regions: regions, captions: captions}
}

func registerExport(g gin.IRouter, api ExportAPI, handler ...gin.HandlerFunc) {
	g.Group("/videos/:vid", handler...).GET("/export", web.WrapH(api.export))
}

type exportOutput struct {
	VideoID  string          `json:"video_id"`
	Segments []exportSegment `json:"segments"`
}

type exportSegment struct {
	ID              int64                       `json:"id"`
	Name            string                      `json:"name"`
	Start           float64                     `json:"start"`
	End             float64                     `json:"end"`
	Duration        float64                     `json:"duration"`
	Regions         []exportRegion              `json:"regions"`
	SegmentCaptions map[caption.Lang]exportText `json:"segment_captions"`
}

type exportRegion struct {
	ID            int64                       `json:"id"`
	Label         string                      `json:"label"`
	Color         string                      `json:"color"`
	FrameTime     float64                     `json:"frame_time"`
	SegmentedMask string                      `json:"segmented_mask"`
	Captions      map[caption.Lang]exportText `json:"captions"`
}

// exportText 区域导出 visual，片段导出 contextual
type exportText struct {
	Visual     *string `json:"visual,omitempty"`
	Contextual *string `json:"contextual,omitempty"`
	Knowledge  string  `json:"knowledge"`
	Combined   string  `json:"combined"`
}

func (a ExportAPI) export(c *gin.Context, _ *struct{}) (*exportOutput, error) {
	out, err := a.build(c.Request.Context(), c.Param("vid"))
	return out, toReason(err)
}

func (a ExportAPI) build(ctx context.Context, videoID string) (*exportOutput, error) {
	segments, err := a.segments.ListSegments(ctx, videoID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(segments))
	for i, s := range segments {
		ids[i] = s.ID
	}
	regions, err := a.regions.ListBySegments(ctx, ids)
	if err != nil {
		return nil, err
	}
	var captions []*caption.Caption
	if len(ids) > 0 {
		if captions, err = a.captions.FindCaptions(ctx, ids...); err != nil {
			return nil, err
		}
	}
	return buildExport(videoID, segments, regions, captions), nil
}

// buildExport 片段按 order，区域按创建顺序
func buildExport(videoID string, segments []*segment.Segment, regions []*region.Region, captions []*caption.Caption) *exportOutput {
	regionCaps := make(map[int64]*caption.Caption, len(captions))
	segmentCaps := make(map[int64]*caption.Caption)
	for _, c := range captions {
		if c.RegionID != nil {
			regionCaps[*c.RegionID] = c
			continue
		}
		segmentCaps[c.SegmentID] = c
	}
	bySegment := make(map[int64][]exportRegion, len(segments))
	for _, r := range regions {
		bySegment[r.SegmentID] = append(bySegment[r.SegmentID], exportRegion{
			ID:            r.ID,
			Label:         r.Label,
			Color:         r.Color,
			FrameTime:     r.FrameTime,
			SegmentedMask: r.MaskDataURL(),
			Captions:      captionTexts(regionCaps[r.ID], caption.KindVisual),
		})
	}

	out := exportOutput{VideoID: videoID, Segments: make([]exportSegment, 0, len(segments))}
	for _, s := range segments {
		items := bySegment[s.ID]
		if items == nil {
			items = make([]exportRegion, 0)
		}
		out.Segments = append(out.Segments, exportSegment{
			ID:              s.ID,
			Name:            s.Name,
			Start:           s.StartTime,
			End:             s.EndTime,
			Duration:        s.Duration(),
			Regions:         items,
			SegmentCaptions: captionTexts(segmentCaps[s.ID], caption.KindContextual),
		})
	}
	return &out
}

// captionTexts 没有描述时各字段为空字符串
func captionTexts(c *caption.Caption, primary caption.Kind) map[caption.Lang]exportText {
	if c == nil {
		c = new(caption.Caption)
	}
	out := make(map[caption.Lang]exportText, 2)
	for _, lang := range []caption.Lang{caption.LangEN, caption.LangVI} {
		text := c.Text(primary, lang)
		t := exportText{
			Knowledge: c.Text(caption.KindKnowledge, lang),
			Combined:  c.Text(caption.KindCombined, lang),
		}
		if primary == caption.KindVisual {
			t.Visual = &text
		} else {
			t.Contextual = &text
		}
		out[lang] = t
	}
	return out
}
