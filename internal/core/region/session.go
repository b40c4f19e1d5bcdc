package region

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/gowvp/annotator/pkg/overlay"
)

// Session 一个片段上的编辑会话
// 持有绘制图层、最近一次分割结果以及被选中区域的暂存掩码
// 切换区域或片段时调用 DiscardPending 丢弃未保存的修改
type Session struct {
	mu sync.Mutex

	ID        string
	SegmentID int64
	W, H      int

	regionID  int64
	label     string
	frameTime float64
	nextColor int

	layer   *mask.Layer
	base    *mask.Mask // 选中区域已保存的掩码
	staged  *mask.Mask // base 经过擦除后的副本
	pending *mask.Mask // 分割服务返回的结果

	gen       uint64
	cancel    context.CancelFunc
	touchedAt time.Time
}

// SessionState 会话的只读快照
type SessionState struct {
	ID         string  `json:"id"`
	SegmentID  int64   `json:"segment_id"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	RegionID   int64   `json:"region_id"`
	Label      string  `json:"label"`
	Color      string  `json:"color"`
	FrameTime  float64 `json:"frame_time"`
	HasStrokes bool    `json:"has_strokes"`
	HasPending bool    `json:"has_pending"`
	Generation uint64  `json:"generation"`
}

// NewSession regionCount 为片段内已有区域数，决定下一个区域的预览色
func NewSession(segmentID int64, w, h, regionCount int) (*Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		SegmentID: segmentID,
		W:         w,
		H:         h,
		label:     DefaultLabel,
		nextColor: regionCount,
		touchedAt: time.Now(),
	}
	layer, err := mask.NewLayer(w, h, s.previewColor())
	if err != nil {
		return nil, err
	}
	s.layer = layer
	return &s, nil
}

func (s *Session) previewColor() color.NRGBA {
	c, _ := overlay.ParseColor(PaletteColor(s.nextColor))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: mask.PreviewAlpha}
}

func (s *Session) touch() {
	s.touchedAt = time.Now()
}

// State 快照
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:         s.ID,
		SegmentID:  s.SegmentID,
		Width:      s.W,
		Height:     s.H,
		RegionID:   s.regionID,
		Label:      s.label,
		Color:      fmt.Sprintf("#%02x%02x%02x", s.layer.Color.R, s.layer.Color.G, s.layer.Color.B),
		FrameTime:  s.frameTime,
		HasStrokes: !s.layer.Empty(),
		HasPending: s.pending != nil,
		Generation: s.gen,
	}
}

// SetFrameTime 记录当前抓帧的时间点
func (s *Session) SetFrameTime(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameTime = t
	s.touch()
}

// Select 选中已有区域重新编辑，m 为该区域已保存的掩码，可为 nil
// 会丢弃当前未保存的修改
func (s *Session) Select(r *Region, m *mask.Mask) error {
	if m != nil {
		scaled, err := mask.Rescale(m, s.W, s.H)
		if err != nil {
			return err
		}
		m = scaled
	}
	c, err := overlay.ParseColor(r.Color)
	if err != nil {
		c, _ = overlay.ParseColor(PaletteColor(0))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	s.regionID = r.ID
	s.label = r.Label
	s.frameTime = r.FrameTime
	s.base, s.staged = m, m
	s.layer.Color = color.NRGBA{R: c.R, G: c.G, B: c.B, A: mask.PreviewAlpha}
	return nil
}

// StartNew 开始绘制新区域，会丢弃当前未保存的修改
func (s *Session) StartNew(regionCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	s.regionID = 0
	s.label = DefaultLabel
	s.base, s.staged = nil, nil
	s.nextColor = regionCount
	s.layer.Color = s.previewColor()
}

// Stroke 画笔或橡皮擦，全部计算完成后才写入
// 擦除同时作用于分割结果与选中区域的暂存掩码
// 已有分割结果时补画的笔迹并入分割结果，保存时不会丢失，重新分割会整体替换
func (s *Session) Stroke(path []mask.Point, radius float64, mode mask.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged, pending := s.staged, s.pending
	var err error
	if mode == mask.ModeErase && staged != nil {
		if staged, err = staged.EraseStroke(path, radius); err != nil {
			return err
		}
	}
	if pending != nil {
		if mode == mask.ModeErase {
			pending, err = pending.EraseStroke(path, radius)
		} else {
			pending, err = pending.PaintStroke(path, radius)
		}
		if err != nil {
			return err
		}
	}
	if err := s.layer.Stroke(path, radius, mode); err != nil {
		return err
	}
	s.staged, s.pending = staged, pending
	s.touch()
	return nil
}

// DiscardPending 丢弃笔迹、分割结果和暂存擦除，取消进行中的分割请求
func (s *Session) DiscardPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

func (s *Session) discardLocked() {
	s.layer.Clear()
	s.pending = nil
	s.staged = s.base
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.touch()
}

// BeginSegmentation 取消上一次未完成的请求并返回新的代数
// 返回的 brush 为当前笔迹的二值 PNG
func (s *Session) BeginSegmentation(ctx context.Context) (context.Context, uint64, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layer.Empty() {
		return nil, 0, nil, fmt.Errorf("%w: draw on the frame before segmenting", bz.ErrPrecondition)
	}
	brush, err := mask.Encode(mask.Binarize(s.layer))
	if err != nil {
		return nil, 0, nil, err
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.touch()
	return ctx, s.gen, brush, nil
}

// AcceptSegmentation 仅接受最新一次请求的结果，过期结果返回 bz.ErrStale
func (s *Session) AcceptSegmentation(gen uint64, m *mask.Mask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return fmt.Errorf("%w: generation %d superseded by %d", bz.ErrStale, gen, s.gen)
	}
	if m.W != s.W || m.H != s.H {
		return &mask.InvalidDimensionsError{W: m.W, H: m.H}
	}
	s.pending = m
	s.finishLocked()
	return nil
}

// FailSegmentation 请求失败时笔迹保持不变
// 返回该次请求是否已被后续请求取代
func (s *Session) FailSegmentation(gen uint64) (stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return true
	}
	s.finishLocked()
	return false
}

func (s *Session) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.touch()
}

// Result 待保存的掩码
// 有分割结果时使用分割结果（已包含分割之后的补画与擦除），否则由笔迹二值化得到，并与选中区域的暂存掩码合并
func (s *Session) Result() (result, brush *mask.Mask, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	brush = mask.Binarize(s.layer)
	switch {
	case s.pending != nil:
		result = s.pending
	case s.staged != nil:
		if result, err = mask.Union(s.staged, brush); err != nil {
			return nil, nil, err
		}
	default:
		result = brush
	}
	if result.Empty() {
		return nil, nil, fmt.Errorf("%w: nothing to save", bz.ErrPrecondition)
	}
	if brush.Empty() {
		brush = nil
	}
	return result, brush, nil
}

// Saved 保存成功后清空图层，准备绘制下一个区域
func (s *Session) Saved(created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	s.regionID = 0
	s.label = DefaultLabel
	s.base, s.staged = nil, nil
	if created {
		s.nextColor++
	}
	s.layer.Color = s.previewColor()
}

// RegionID 正在编辑的区域，0 表示新建
func (s *Session) RegionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regionID
}

// Label 当前标签
func (s *Session) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// FrameTime 当前抓帧时间
func (s *Session) FrameTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameTime
}

// Render 合成片段内所有区域，选中区域以暂存掩码替换并高亮，最后叠加分割结果与笔迹预览
func (s *Session) Render(c *overlay.Compositor, regions []overlay.Region) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]overlay.Region, len(regions))
	copy(items, regions)
	for i := range items {
		if items[i].ID == s.regionID && s.regionID != 0 {
			items[i].Mask = s.staged
		}
	}
	if s.pending != nil {
		items = append(items, overlay.Region{
			ID:    -1,
			Color: color.RGBA{R: s.layer.Color.R, G: s.layer.Color.G, B: s.layer.Color.B, A: 0xff},
			Mask:  s.pending,
		})
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.W, s.H))
	if err := c.Render(dst, items, s.regionID); err != nil {
		return nil, err
	}
	overlay.DrawLayer(dst, s.layer)
	return dst, nil
}
