package segment

import (
	"fmt"
	"math"
	"sync"

	"github.com/gowvp/annotator/internal/core/bz"
)

// Timeline 标记起点/终点的待提交区间
type Timeline struct {
	mu    sync.Mutex
	start *float64
	end   *float64
}

// MarkStart 记录起点并清除已有终点
func (t *Timeline) MarkStart(at float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = &at
	t.end = nil
}

// MarkEnd 必须先标记起点
func (t *Timeline) MarkEnd(at float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.start == nil {
		return fmt.Errorf("%w: mark start before end", bz.ErrPrecondition)
	}
	t.end = &at
	return nil
}

// Pending 当前标记，未标记的为 nil
func (t *Timeline) Pending() (start, end *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.start != nil {
		v := *t.start
		start = &v
	}
	if t.end != nil {
		v := *t.end
		end = &v
	}
	return start, end
}

// Range 计算待提交区间，未标记终点时取视频时长
// 此时时长必须有效且不小于起点
func (t *Timeline) Range(duration float64) (Range, error) {
	start, end := t.Pending()
	if start == nil {
		return Range{}, fmt.Errorf("%w: no start marked", bz.ErrPrecondition)
	}
	if end != nil {
		return NewRange(*start, *end), nil
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Range{}, fmt.Errorf("%w: no end marked and video duration[%v] is unknown", bz.ErrPrecondition, duration)
	}
	if duration < *start {
		return Range{}, fmt.Errorf("%w: video duration[%v] is before start[%v]", bz.ErrPrecondition, duration, *start)
	}
	return Range{Start: *start, End: duration}, nil
}

// Clear 清空标记
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start, t.end = nil, nil
}
