package api

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/internal/core/segment"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// SegmentAPI 片段与时间轴标记
type SegmentAPI struct {
	core    segment.Core
	regions region.Core

	mu        *sync.Mutex
	timelines *conc.Map[string, *segment.Timeline]
}

func NewSegmentAPI(core segment.Core, regions region.Core) SegmentAPI {
	return SegmentAPI{
		core:      core,
		regions:   regions,
		mu:        new(sync.Mutex),
		timelines: conc.NewMap[string, *segment.Timeline](),
	}
}

func registerSegment(g gin.IRouter, api SegmentAPI, handler ...gin.HandlerFunc) {
	{
		group := g.Group("/videos/:vid", handler...)
		group.GET("/segments", web.WrapH(api.findSegments))
		group.POST("/segments", web.WrapH(api.addSegment))
		group.POST("/segments/batch", web.WrapH(api.batchSegments))
		group.POST("/segments/autosplit", web.WrapH(api.autoSplit))
		// 播放器按 #t=start,end 逐段播放
		group.GET("/segments/index.m3u8", api.playlist)

		group.GET("/timeline", web.WrapH(api.getTimeline))
		group.POST("/timeline/start", web.WrapH(api.markStart))
		group.POST("/timeline/end", web.WrapH(api.markEnd))
		group.POST("/timeline/commit", web.WrapH(api.commit))
		group.DELETE("/timeline", web.WrapH(api.clearTimeline))
	}
	{
		group := g.Group("/segments", handler...)
		group.GET("/:id", web.WrapH(api.getSegment))
		group.PUT("/:id", web.WrapH(api.editSegment))
		group.DELETE("/:id", web.WrapH(api.delSegment))
	}
}

type segmentItem struct {
	*segment.Segment
	Duration    float64 `json:"duration"`
	RegionCount int64   `json:"region_count"`
}

func (a SegmentAPI) withCounts(c *gin.Context, items []*segment.Segment) ([]segmentItem, error) {
	ids := make([]int64, len(items))
	for i, s := range items {
		ids[i] = s.ID
	}
	counts, err := a.regions.CountBySegments(c.Request.Context(), ids)
	if err != nil {
		return nil, err
	}
	out := make([]segmentItem, len(items))
	for i, s := range items {
		out[i] = segmentItem{Segment: s, Duration: s.Duration(), RegionCount: counts[s.ID]}
	}
	return out, nil
}

func (a SegmentAPI) findSegments(c *gin.Context, in *segment.FindSegmentInput) (any, error) {
	in.VideoID = c.Param("vid")
	items, total, err := a.core.FindSegments(c.Request.Context(), in)
	if err != nil {
		return nil, toReason(err)
	}
	out, err := a.withCounts(c, items)
	return gin.H{"items": out, "total": total}, err
}

func (a SegmentAPI) getSegment(c *gin.Context, _ *struct{}) (*segmentItem, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	s, err := a.core.GetSegment(c.Request.Context(), id)
	if err != nil {
		return nil, toReason(err)
	}
	out, err := a.withCounts(c, []*segment.Segment{s})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (a SegmentAPI) addSegment(c *gin.Context, in *segment.AddSegmentInput) (*segment.Segment, error) {
	in.VideoID = c.Param("vid")
	out, err := a.core.AddSegment(c.Request.Context(), in)
	return out, toReason(err)
}

func (a SegmentAPI) editSegment(c *gin.Context, in *segment.EditSegmentInput) (*segment.Segment, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.EditSegment(c.Request.Context(), in, id)
	return out, toReason(err)
}

func (a SegmentAPI) delSegment(c *gin.Context, _ *struct{}) (*segment.Segment, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.DelSegment(c.Request.Context(), id)
	return out, toReason(err)
}

func (a SegmentAPI) batchSegments(c *gin.Context, in *segment.BatchSegmentInput) (any, error) {
	items, err := a.core.BatchSegments(c.Request.Context(), c.Param("vid"), in)
	return gin.H{"items": items}, toReason(err)
}

func (a SegmentAPI) autoSplit(c *gin.Context, in *segment.AutoSplitInput) (any, error) {
	items, err := a.core.AutoSplit(c.Request.Context(), c.Param("vid"), in)
	return gin.H{"items": items}, toReason(err)
}

// timeline 每个视频一份待提交标记，首次访问时创建
func (a SegmentAPI) timeline(videoID string) *segment.Timeline {
	if tl, ok := a.timelines.Load(videoID); ok {
		return tl
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if tl, ok := a.timelines.Load(videoID); ok {
		return tl
	}
	tl := new(segment.Timeline)
	a.timelines.Store(videoID, tl)
	return tl
}

type timelineOutput struct {
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

func timelineState(tl *segment.Timeline) timelineOutput {
	start, end := tl.Pending()
	return timelineOutput{StartTime: start, EndTime: end}
}

func (a SegmentAPI) getTimeline(c *gin.Context, _ *struct{}) (timelineOutput, error) {
	return timelineState(a.timeline(c.Param("vid"))), nil
}

func (a SegmentAPI) markStart(c *gin.Context, in *segment.MarkInput) (timelineOutput, error) {
	if in.Time < 0 {
		return timelineOutput{}, reason.ErrBadRequest.SetMsg("time must not be negative")
	}
	tl := a.timeline(c.Param("vid"))
	tl.MarkStart(in.Time)
	return timelineState(tl), nil
}

func (a SegmentAPI) markEnd(c *gin.Context, in *segment.MarkInput) (timelineOutput, error) {
	if in.Time < 0 {
		return timelineOutput{}, reason.ErrBadRequest.SetMsg("time must not be negative")
	}
	tl := a.timeline(c.Param("vid"))
	if err := tl.MarkEnd(in.Time); err != nil {
		return timelineOutput{}, toReason(err)
	}
	return timelineState(tl), nil
}

func (a SegmentAPI) commit(c *gin.Context, in *segment.CommitInput) (*segment.Segment, error) {
	vid := c.Param("vid")
	out, err := a.core.CommitPending(c.Request.Context(), vid, a.timeline(vid), in)
	return out, toReason(err)
}

func (a SegmentAPI) clearTimeline(c *gin.Context, _ *struct{}) (timelineOutput, error) {
	tl := a.timeline(c.Param("vid"))
	tl.Clear()
	return timelineState(tl), nil
}

// playlist 生成 VOD 播放列表，每个片段为 src#t=start,end
// 路径: /videos/:vid/segments/index.m3u8?src=xxx.mp4
func (a SegmentAPI) playlist(c *gin.Context) {
	src := c.Query("src")
	if src == "" {
		web.Fail(c, reason.ErrBadRequest.SetMsg("src is required"))
		return
	}
	items, err := a.core.ListSegments(c.Request.Context(), c.Param("vid"))
	if err != nil {
		web.Fail(c, toReason(err))
		return
	}
	body, err := segmentPlaylist(items, src)
	if err != nil {
		web.Fail(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, body)
}

func segmentPlaylist(items []*segment.Segment, src string) (string, error) {
	if len(items) == 0 {
		return "", reason.ErrNotFound.SetMsg("no segments")
	}
	// winSize=0 表示 VOD
	pl, err := m3u8.NewMediaPlaylist(0, uint(len(items)))
	if err != nil {
		return "", reason.ErrServer.SetMsg(err.Error())
	}
	pl.MediaType = m3u8.VOD
	for i, s := range items {
		uri := fmt.Sprintf("%s#t=%g,%g", src, s.StartTime, s.EndTime)
		if err := pl.Append(uri, s.Duration(), s.Name); err != nil {
			return "", reason.ErrServer.SetMsg(err.Error())
		}
		// 作用于刚追加的片段，片段之间时间不连续
		if i > 0 {
			_ = pl.SetDiscontinuity()
		}
	}
	pl.Close()
	return pl.String(), nil
}
