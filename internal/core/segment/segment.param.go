package segment

import "github.com/ixugo/goddd/pkg/web"

type FindSegmentInput struct {
	web.PagerFilter
	VideoID string `form:"-"`
}

type AddSegmentInput struct {
	VideoID   string  `json:"-"`
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Color     string  `json:"color"`
	Force     bool    `json:"force"` // 允许起止相同
}

type EditSegmentInput struct {
	Name      *string  `json:"name"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Order     *int     `json:"order"`
	Color     *string  `json:"color"`
}

type BatchSegmentItem struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type BatchSegmentInput struct {
	Items   []BatchSegmentItem `json:"segments"`
	Replace bool               `json:"replace"` // 先删除视频下全部片段、区域与描述
}

type AutoSplitInput struct {
	Duration float64 `json:"duration"`
}

// MarkInput 播放头位置
type MarkInput struct {
	Time float64 `json:"time"`
}

type CommitInput struct {
	Duration float64 `json:"duration"`
	Name     string  `json:"name"`
	Force    bool    `json:"force"`
}
