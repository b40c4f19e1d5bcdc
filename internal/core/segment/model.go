package segment

import (
	"math"

	"github.com/ixugo/goddd/pkg/orm"
)

// Palette 片段颜色，按当前片段数量轮流分配
var Palette = [...]string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#ec4899", "#06b6d4", "#84cc16"}

// Segment 视频上的一段时间范围，单位秒
type Segment struct {
	ID        int64    `gorm:"primaryKey" json:"id"`
	VideoID   string   `gorm:"column:video_id;index;notNull;default:''" json:"video_id"`
	Name      string   `gorm:"column:name;notNull;default:''" json:"name"`
	StartTime float64  `gorm:"column:start_time;notNull;default:0" json:"start_time"`
	EndTime   float64  `gorm:"column:end_time;notNull;default:0" json:"end_time"`
	Order     int      `gorm:"column:sort;notNull;default:0" json:"order"`
	Color     string   `gorm:"column:color;notNull;default:''" json:"color"`
	CreatedAt orm.Time `gorm:"column:created_at;notNull" json:"created_at"`
	UpdatedAt orm.Time `gorm:"column:updated_at;notNull" json:"updated_at"`
}

func (*Segment) TableName() string {
	return "segments"
}

// Duration 保留三位小数
func (s *Segment) Duration() float64 {
	return math.Round((s.EndTime-s.StartTime)*1000) / 1000
}

// Range 闭区间 [Start, End]
type Range struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// NewRange 起止顺序无关
func NewRange(a, b float64) Range {
	return Range{Start: min(a, b), End: max(a, b)}
}

// Degenerate 起止相同
func (r Range) Degenerate() bool {
	return r.Start == r.End
}

// SplitEvenly 将时长均分为 ceil(d/10) 段，至少 2 段
func SplitEvenly(duration float64) []Range {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil
	}
	n := max(2, int(math.Ceil(duration/AutoSplitSeconds)))
	step := duration / float64(n)
	out := make([]Range, n)
	for i := range out {
		out[i] = Range{Start: float64(i) * step, End: float64(i+1) * step}
	}
	// 消除浮点累计误差，最后一段落在视频末尾
	out[n-1].End = duration
	return out
}

// AutoSplitSeconds 自动分段的目标时长
const AutoSplitSeconds = 10.0
