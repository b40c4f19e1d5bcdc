package region

import (
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/ixugo/goddd/pkg/orm"
)

// DefaultLabel 未填写标签时使用
const DefaultLabel = "Object"

// Palette 区域颜色，新建区域按当前片段内区域数量轮流分配
var Palette = [...]string{
	"#FF4444", "#3b82f6", "#10b981", "#f59e0b", "#8b5cf6",
	"#ec4899", "#06b6d4", "#84cc16", "#f97316", "#14b8a6",
}

// PaletteColor palette[n % 10]
func PaletteColor(n int) string {
	return Palette[n%len(Palette)]
}

// Region 片段中的一个标注对象
// Mask 为无损 PNG，尺寸与创建/更新时抓帧的分辨率一致，入库时不做缩放
type Region struct {
	ID         int64    `gorm:"primaryKey" json:"id"`
	SegmentID  int64    `gorm:"column:segment_id;index;notNull;default:0" json:"segment_id"`
	Label      string   `gorm:"column:label;notNull;default:''" json:"label"`
	Color      string   `gorm:"column:color;notNull;default:''" json:"color"`
	FrameTime  float64  `gorm:"column:frame_time;notNull;default:0" json:"frame_time"`
	MaskWidth  int      `gorm:"column:mask_width;notNull;default:0" json:"mask_width"`
	MaskHeight int      `gorm:"column:mask_height;notNull;default:0" json:"mask_height"`
	Mask       []byte   `gorm:"column:segmented_mask" json:"-"`
	BrushMask  []byte   `gorm:"column:brush_mask" json:"-"` // 生成掩码时的原始笔迹，仅用于审计与重新编辑
	CreatedAt  orm.Time `gorm:"column:created_at;notNull" json:"created_at"`
	UpdatedAt  orm.Time `gorm:"column:updated_at;notNull" json:"updated_at"`
}

func (*Region) TableName() string {
	return "regions"
}

// HasMask 尚未分割的区域没有掩码
func (r *Region) HasMask() bool {
	return len(r.Mask) > 0
}

// DecodeMask 没有掩码时返回 nil
func (r *Region) DecodeMask() (*mask.Mask, error) {
	if !r.HasMask() {
		return nil, nil
	}
	return mask.Decode(r.Mask)
}

// MaskDataURL 导出用的 data URL
func (r *Region) MaskDataURL() string {
	if !r.HasMask() {
		return ""
	}
	return mask.DataURL("image/png", r.Mask)
}
