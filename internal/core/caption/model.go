package caption

import (
	"github.com/ixugo/goddd/pkg/orm"
)

// Kind 描述类型
type Kind string

const (
	KindVisual     Kind = "visual"
	KindContextual Kind = "contextual"
	KindKnowledge  Kind = "knowledge"
	KindCombined   Kind = "combined"
)

// Lang 描述语言
type Lang string

const (
	LangEN Lang = "en"
	LangVI Lang = "vi"
)

// Caption 区域或片段的描述，RegionID 为空表示片段级描述
type Caption struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	VideoID   string `gorm:"column:video_id;index;notNull;default:''" json:"video_id"`
	SegmentID int64  `gorm:"column:segment_id;index;notNull;default:0" json:"segment_id"`
	RegionID  *int64 `gorm:"column:region_id;index" json:"region_id"`

	VisualCaption     string `gorm:"column:visual_caption;notNull;default:''" json:"visual_caption"`
	ContextualCaption string `gorm:"column:contextual_caption;notNull;default:''" json:"contextual_caption"`
	KnowledgeCaption  string `gorm:"column:knowledge_caption;notNull;default:''" json:"knowledge_caption"`
	CombinedCaption   string `gorm:"column:combined_caption;notNull;default:''" json:"combined_caption"`

	VisualCaptionVI     string `gorm:"column:visual_caption_vi;notNull;default:''" json:"visual_caption_vi"`
	ContextualCaptionVI string `gorm:"column:contextual_caption_vi;notNull;default:''" json:"contextual_caption_vi"`
	KnowledgeCaptionVI  string `gorm:"column:knowledge_caption_vi;notNull;default:''" json:"knowledge_caption_vi"`
	CombinedCaptionVI   string `gorm:"column:combined_caption_vi;notNull;default:''" json:"combined_caption_vi"`

	CreatedAt orm.Time `gorm:"column:created_at;notNull" json:"created_at"`
	UpdatedAt orm.Time `gorm:"column:updated_at;notNull" json:"updated_at"`
}

func (*Caption) TableName() string {
	return "captions"
}

// field 返回指定类型与语言的字段
func (c *Caption) field(k Kind, l Lang) *string {
	vi := l == LangVI
	switch k {
	case KindVisual:
		if vi {
			return &c.VisualCaptionVI
		}
		return &c.VisualCaption
	case KindContextual:
		if vi {
			return &c.ContextualCaptionVI
		}
		return &c.ContextualCaption
	case KindKnowledge:
		if vi {
			return &c.KnowledgeCaptionVI
		}
		return &c.KnowledgeCaption
	case KindCombined:
		if vi {
			return &c.CombinedCaptionVI
		}
		return &c.CombinedCaption
	}
	return nil
}

// Text 读取指定字段，未知类型返回空
func (c *Caption) Text(k Kind, l Lang) string {
	if p := c.field(k, l); p != nil {
		return *p
	}
	return ""
}

// SetText 写入指定字段，未知类型返回 false
func (c *Caption) SetText(k Kind, l Lang, s string) bool {
	p := c.field(k, l)
	if p == nil {
		return false
	}
	*p = s
	return true
}

// Kinds 全部描述类型
var Kinds = [...]Kind{KindVisual, KindContextual, KindKnowledge, KindCombined}
