package caption

import (
	"github.com/gowvp/annotator/pkg/mask"
)

// SaveCaptionInput 同一区域 (或片段级) 只保留一条描述，已存在时仅覆盖传入的字段
type SaveCaptionInput struct {
	VideoID   string `json:"video_id"`
	SegmentID int64  `json:"segment_id"`
	RegionID  *int64 `json:"region_id"`

	EditCaptionInput
}

type EditCaptionInput struct {
	VisualCaption     *string `json:"visual_caption"`
	ContextualCaption *string `json:"contextual_caption"`
	KnowledgeCaption  *string `json:"knowledge_caption"`
	CombinedCaption   *string `json:"combined_caption"`

	VisualCaptionVI     *string `json:"visual_caption_vi"`
	ContextualCaptionVI *string `json:"contextual_caption_vi"`
	KnowledgeCaptionVI  *string `json:"knowledge_caption_vi"`
	CombinedCaptionVI   *string `json:"combined_caption_vi"`
}

func (in *EditCaptionInput) apply(c *Caption) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.VisualCaption, in.VisualCaption)
	set(&c.ContextualCaption, in.ContextualCaption)
	set(&c.KnowledgeCaption, in.KnowledgeCaption)
	set(&c.CombinedCaption, in.CombinedCaption)
	set(&c.VisualCaptionVI, in.VisualCaptionVI)
	set(&c.ContextualCaptionVI, in.ContextualCaptionVI)
	set(&c.KnowledgeCaptionVI, in.KnowledgeCaptionVI)
	set(&c.CombinedCaptionVI, in.CombinedCaptionVI)
}

// GenerateInput Frames 为编码后的帧图片，按时间顺序
type GenerateInput struct {
	Frames [][]byte
	Mask   *mask.Mask // visual 必填
	Kind   Kind
}

// GenerateOutput 批量生成时单项失败不影响其他项
type GenerateOutput struct {
	VisualCaption     string   `json:"visual_caption"`
	ContextualCaption string   `json:"contextual_caption"`
	Warnings          []string `json:"warnings,omitempty"`
}

type TranslateInput struct {
	From Lang `json:"from"` // 默认 en
	// Kinds 为空时翻译全部非空字段
	Kinds []Kind `json:"kinds"`
}

type CombineInput struct {
	Lang Lang `json:"lang"`
}
