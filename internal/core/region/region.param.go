package region

import (
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/ixugo/goddd/pkg/web"
)

type FindRegionInput struct {
	web.PagerFilter
	SegmentID int64 `form:"-"`
}

// AddRegionInput Mask 可为空，表示尚未分割
type AddRegionInput struct {
	SegmentID int64
	Label     string
	Color     string // 为空时按调色板分配
	FrameTime float64
	Mask      *mask.Mask
	BrushMask *mask.Mask
}

// EditRegionInput 整体替换掩码，Label/Color 为空时保留原值
type EditRegionInput struct {
	Label     string
	Color     string
	FrameTime float64
	Mask      *mask.Mask
	BrushMask *mask.Mask
}

type EditRegionPropsInput struct {
	Label *string `json:"label"`
	Color *string `json:"color"`
}
