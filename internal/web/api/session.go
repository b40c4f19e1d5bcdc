package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/annotator/internal/conf"
	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/internal/core/segment"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/gowvp/annotator/pkg/overlay"
	"github.com/gowvp/annotator/pkg/viewport"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// SessionAPI 片段上的绘制、分割与保存
type SessionAPI struct {
	sessions   *region.Sessions
	regions    region.Core
	segments   segment.Core
	masks      *MaskCache
	compositor *overlay.Compositor
	brushSize  int
}

func NewSessionAPI(sessions *region.Sessions, regions region.Core, segments segment.Core, masks *MaskCache, compositor *overlay.Compositor, cfg *conf.Bootstrap) SessionAPI {
	size := cfg.Editor.BrushSize
	if size <= 0 {
		size = mask.DefaultBrushSize
	}
	return SessionAPI{
		sessions:   sessions,
		regions:    regions,
		segments:   segments,
		masks:      masks,
		compositor: compositor,
		brushSize:  size,
	}
}

func registerSession(g gin.IRouter, api SessionAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/segments/:id/session", handler...)
	group.POST("", web.WrapH(api.open))
	group.GET("", web.WrapH(api.state))
	group.DELETE("", web.WrapH(api.close))
	group.POST("/select", web.WrapH(api.selectRegion))
	group.POST("/strokes", web.WrapH(api.stroke))
	group.POST("/segment", web.WrapH(api.segment))
	group.POST("/save", web.WrapH(api.save))
	group.DELETE("/pending", web.WrapH(api.discard))
	group.GET("/overlay.png", api.renderOverlay)
}

func (a SessionAPI) session(c *gin.Context) (*region.Session, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	s, ok := a.sessions.Get(id)
	if !ok {
		return nil, toReason(fmt.Errorf("%w: no editing session for segment[%d]", bz.ErrNotFound, id))
	}
	return s, nil
}

// selectRegion 将已保存的区域载入会话，掩码按会话尺寸缩放
func (a SessionAPI) selectRegion(c *gin.Context, in *selectRegionInput) (region.SessionState, error) {
	s, err := a.session(c)
	if err != nil {
		return region.SessionState{}, err
	}
	ctx := c.Request.Context()
	if in.RegionID == 0 {
		n, err := a.regions.CountRegions(ctx, s.SegmentID)
		if err != nil {
			return region.SessionState{}, err
		}
		s.StartNew(int(n))
		return s.State(), nil
	}
	r, err := a.regions.GetRegion(ctx, in.RegionID)
	if err != nil {
		return region.SessionState{}, toReason(err)
	}
	if r.SegmentID != s.SegmentID {
		return region.SessionState{}, reason.ErrBadRequest.Withf("region[%d] belongs to segment[%d]", r.ID, r.SegmentID)
	}
	m, err := a.masks.Get(r)
	if err != nil {
		return region.SessionState{}, toReason(err)
	}
	if err := s.Select(r, m); err != nil {
		return region.SessionState{}, toReason(err)
	}
	return s.State(), nil
}

type openSessionInput struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameTime float64 `json:"frame_time"`
	RegionID  int64   `json:"region_id"` // 非 0 时直接进入该区域的编辑
}

type selectRegionInput struct {
	RegionID int64 `json:"region_id"` // 0 表示开始绘制新区域
}

// open 打开片段的编辑会话，已有会话的未保存修改被丢弃
func (a SessionAPI) open(c *gin.Context, in *openSessionInput) (region.SessionState, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return region.SessionState{}, err
	}
	ctx := c.Request.Context()
	if _, err := a.segments.GetSegment(ctx, id); err != nil {
		return region.SessionState{}, toReason(err)
	}
	if in.Width > maxCanvasSide || in.Height > maxCanvasSide {
		return region.SessionState{}, toReason(&mask.InvalidDimensionsError{W: in.Width, H: in.Height})
	}
	n, err := a.regions.CountRegions(ctx, id)
	if err != nil {
		return region.SessionState{}, err
	}
	s, err := a.sessions.Open(id, in.Width, in.Height, int(n))
	if err != nil {
		return region.SessionState{}, toReason(err)
	}
	s.SetFrameTime(in.FrameTime)
	if in.RegionID != 0 {
		return a.selectRegion(c, &selectRegionInput{RegionID: in.RegionID})
	}
	return s.State(), nil
}

func (a SessionAPI) state(c *gin.Context, _ *struct{}) (region.SessionState, error) {
	s, err := a.session(c)
	if err != nil {
		return region.SessionState{}, err
	}
	return s.State(), nil
}

func (a SessionAPI) close(c *gin.Context, _ *struct{}) (gin.H, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	return gin.H{"closed": a.sessions.Close(id)}, nil
}

func (a SessionAPI) discard(c *gin.Context, _ *struct{}) (region.SessionState, error) {
	s, err := a.session(c)
	if err != nil {
		return region.SessionState{}, err
	}
	s.DiscardPending()
	return s.State(), nil
}

// strokeInput Viewport 不为空时 Points 为屏幕坐标，先换算为栅格坐标
type strokeInput struct {
	Points   []mask.Point        `json:"points"`
	Radius   float64             `json:"radius"` // 栅格像素，0 取默认笔刷
	Mode     mask.Mode           `json:"mode"`
	Viewport *viewport.Transform `json:"viewport"`
}

func (a SessionAPI) stroke(c *gin.Context, in *strokeInput) (region.SessionState, error) {
	s, err := a.session(c)
	if err != nil {
		return region.SessionState{}, err
	}
	radius := in.Radius
	if radius == 0 {
		radius = float64(a.brushSize) / 2
	}
	mode := in.Mode
	if mode == "" {
		mode = mask.ModePaint
	}
	points := in.Points
	if in.Viewport != nil {
		points = in.Viewport.Path(points)
	}
	if err := s.Stroke(points, radius, mode); err != nil {
		return region.SessionState{}, reason.ErrBadRequest.SetMsg(err.Error())
	}
	return s.State(), nil
}

type segmentSessionInput struct {
	Frame     string   `json:"frame"` // 当前帧，data URL 或 base64，可为空
	FrameTime *float64 `json:"frame_time"`
}

type segmentSessionOutput struct {
	SegmentedMask string              `json:"segmented_mask"`
	Confidence    float64             `json:"confidence"`
	Message       string              `json:"message"`
	State         region.SessionState `json:"state"`
}

// segment 提交笔迹到分割服务，被新请求取代的结果直接丢弃
func (a SessionAPI) segment(c *gin.Context, in *segmentSessionInput) (*segmentSessionOutput, error) {
	s, err := a.session(c)
	if err != nil {
		return nil, err
	}
	var frame []byte
	if in.Frame != "" {
		if frame, err = mask.DecodeDataURL(in.Frame); err != nil {
			return nil, toReason(err)
		}
	}
	if in.FrameTime != nil {
		s.SetFrameTime(*in.FrameTime)
	}
	out, err := a.regions.Segment(c.Request.Context(), s, frame)
	if err != nil {
		return nil, toReason(err)
	}
	encoded, err := mask.EncodeString(out.Mask)
	if err != nil {
		return nil, reason.ErrServer.SetMsg(err.Error())
	}
	return &segmentSessionOutput{
		SegmentedMask: encoded,
		Confidence:    out.Confidence,
		Message:       out.Message,
		State:         s.State(),
	}, nil
}

func (a SessionAPI) save(c *gin.Context, in *region.SaveSessionInput) (*region.Region, error) {
	s, err := a.session(c)
	if err != nil {
		return nil, err
	}
	out, err := a.regions.SaveSession(c.Request.Context(), s, in)
	return out, toReason(err)
}

// renderOverlay 已保存区域叠加会话内未保存的修改与笔迹预览
func (a SessionAPI) renderOverlay(c *gin.Context) {
	s, err := a.session(c)
	if err != nil {
		web.Fail(c, err)
		return
	}
	ctx := c.Request.Context()
	regions, err := a.regions.ListBySegments(ctx, []int64{s.SegmentID})
	if err != nil {
		web.Fail(c, err)
		return
	}
	items, err := a.masks.Overlay(regions)
	if err != nil {
		web.Fail(c, toReason(err))
		return
	}
	img, err := s.Render(a.compositor, items)
	if err != nil {
		web.Fail(c, toReason(err))
		return
	}
	b, err := overlay.EncodePNG(img)
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", b)
}
