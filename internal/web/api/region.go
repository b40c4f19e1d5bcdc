package api

import (
	"context"
	"image"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/annotator/internal/conf"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/gowvp/annotator/pkg/overlay"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// MaskCache 已解码的区域掩码，区域更新后 UpdatedAt 变化即失效
// 同一掩码复用同一指针，合成器的轮廓缓存才能命中
type MaskCache struct {
	cache *lru.Cache[maskKey, *mask.Mask]
}

type maskKey struct {
	id        int64
	updatedAt int64
}

func NewMaskCache(cfg *conf.Bootstrap) (*MaskCache, error) {
	size := cfg.Editor.OverlayCache
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[maskKey, *mask.Mask](size)
	if err != nil {
		return nil, err
	}
	return &MaskCache{cache: c}, nil
}

// Get 没有掩码的区域返回 nil
func (m *MaskCache) Get(r *region.Region) (*mask.Mask, error) {
	if !r.HasMask() {
		return nil, nil
	}
	key := maskKey{id: r.ID, updatedAt: r.UpdatedAt.UnixNano()}
	if v, ok := m.cache.Get(key); ok {
		return v, nil
	}
	v, err := r.DecodeMask()
	if err != nil {
		return nil, err
	}
	m.cache.Add(key, v)
	return v, nil
}

// Overlay 按合成顺序转换为合成器的输入
func (m *MaskCache) Overlay(regions []*region.Region) ([]overlay.Region, error) {
	out := make([]overlay.Region, 0, len(regions))
	for _, r := range regions {
		v, err := m.Get(r)
		if err != nil {
			return nil, err
		}
		c, err := overlay.ParseColor(r.Color)
		if err != nil {
			c, _ = overlay.ParseColor(region.PaletteColor(0))
		}
		out = append(out, overlay.Region{ID: r.ID, Color: c, Mask: v})
	}
	return out, nil
}

// RegionAPI 区域增删改查与渲染
type RegionAPI struct {
	core       region.Core
	masks      *MaskCache
	compositor *overlay.Compositor
}

func NewRegionAPI(core region.Core, masks *MaskCache, compositor *overlay.Compositor) RegionAPI {
	return RegionAPI{core: core, masks: masks, compositor: compositor}
}

func registerRegion(g gin.IRouter, api RegionAPI, handler ...gin.HandlerFunc) {
	{
		group := g.Group("/segments/:id", handler...)
		group.GET("/regions", web.WrapH(api.findRegions))
		group.POST("/regions", web.WrapH(api.addRegion))
		group.GET("/overlay.png", api.renderOverlay)
	}
	{
		group := g.Group("/regions", handler...)
		group.GET("/:id", web.WrapH(api.getRegion))
		group.PUT("/:id", web.WrapH(api.editRegion))
		group.PATCH("/:id", web.WrapH(api.editRegionProps))
		group.DELETE("/:id", web.WrapH(api.delRegion))
		group.GET("/:id/mask.png", api.getMask)
		group.GET("/:id/outline.svg", api.getOutline)
	}
}

// regionOutput 附带掩码 data URL
type regionOutput struct {
	*region.Region
	SegmentedMask string `json:"segmented_mask,omitempty"`
}

func (a RegionAPI) findRegions(c *gin.Context, in *region.FindRegionInput) (any, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	in.SegmentID = id
	items, total, err := a.core.FindRegions(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, toReason(err)
}

func (a RegionAPI) getRegion(c *gin.Context, _ *struct{}) (*regionOutput, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	r, err := a.core.GetRegion(c.Request.Context(), id)
	if err != nil {
		return nil, toReason(err)
	}
	return &regionOutput{Region: r, SegmentedMask: r.MaskDataURL()}, nil
}

// regionMaskInput 掩码以 data URL 或裸 base64 的 PNG 传入
type regionMaskInput struct {
	Label         string  `json:"label"`
	Color         string  `json:"color"`
	FrameTime     float64 `json:"frame_time"`
	SegmentedMask string  `json:"segmented_mask"`
	BrushMask     string  `json:"brush_mask"`
}

func (in *regionMaskInput) masks() (m, brush *mask.Mask, err error) {
	if in.SegmentedMask != "" {
		if m, err = mask.DecodeString(in.SegmentedMask); err != nil {
			return nil, nil, err
		}
	}
	if in.BrushMask != "" {
		if brush, err = mask.DecodeString(in.BrushMask); err != nil {
			return nil, nil, err
		}
	}
	return m, brush, nil
}

func (a RegionAPI) addRegion(c *gin.Context, in *regionMaskInput) (*region.Region, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	m, brush, err := in.masks()
	if err != nil {
		return nil, toReason(err)
	}
	out, err := a.core.AddRegion(c.Request.Context(), &region.AddRegionInput{
		SegmentID: id,
		Label:     in.Label,
		Color:     in.Color,
		FrameTime: in.FrameTime,
		Mask:      m,
		BrushMask: brush,
	})
	return out, toReason(err)
}

// editRegion 整体替换掩码
func (a RegionAPI) editRegion(c *gin.Context, in *regionMaskInput) (*region.Region, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	m, brush, err := in.masks()
	if err != nil {
		return nil, toReason(err)
	}
	out, err := a.core.EditRegion(c.Request.Context(), &region.EditRegionInput{
		Label:     in.Label,
		Color:     in.Color,
		FrameTime: in.FrameTime,
		Mask:      m,
		BrushMask: brush,
	}, id)
	return out, toReason(err)
}

func (a RegionAPI) editRegionProps(c *gin.Context, in *region.EditRegionPropsInput) (*region.Region, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.EditRegionProps(c.Request.Context(), in, id)
	return out, toReason(err)
}

func (a RegionAPI) delRegion(c *gin.Context, _ *struct{}) (*region.Region, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.DelRegion(c.Request.Context(), id)
	return out, toReason(err)
}

func (a RegionAPI) regionOrFail(c *gin.Context) (*region.Region, bool) {
	id, err := paramID(c, "id")
	if err != nil {
		web.Fail(c, err)
		return nil, false
	}
	r, err := a.core.GetRegion(c.Request.Context(), id)
	if err != nil {
		web.Fail(c, toReason(err))
		return nil, false
	}
	if !r.HasMask() {
		web.Fail(c, reason.ErrNotFound.Withf("region[%d] has no mask", id))
		return nil, false
	}
	return r, true
}

// getMask 原样返回存储的 PNG，不做缩放
func (a RegionAPI) getMask(c *gin.Context) {
	r, ok := a.regionOrFail(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "image/png", r.Mask)
}

func (a RegionAPI) getOutline(c *gin.Context) {
	r, ok := a.regionOrFail(c)
	if !ok {
		return
	}
	m, err := a.masks.Get(r)
	if err != nil {
		web.Fail(c, toReason(err))
		return
	}
	svg, err := mask.TraceSVG(m)
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
}

type overlayQuery struct {
	Width     int
	Height    int
	Highlight int64
}

// parseOverlayQuery 未传宽高时为 0
func parseOverlayQuery(c *gin.Context) (overlayQuery, error) {
	var q overlayQuery
	if s := c.Query("highlight"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, reason.ErrBadRequest.Withf("invalid highlight[%s]", s)
		}
		q.Highlight = n
	}
	for name, dst := range map[string]*int{"width": &q.Width, "height": &q.Height} {
		s := c.Query(name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, reason.ErrBadRequest.Withf("invalid %s[%s]", name, s)
		}
		*dst = n
	}
	return q, nil
}

// maxCanvasSide 渲染尺寸上限
const maxCanvasSide = 8192

func newCanvas(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 || w > maxCanvasSide || h > maxCanvasSide {
		return nil, &mask.InvalidDimensionsError{W: w, H: h}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// renderOverlay 合成片段内全部区域
// 路径: /segments/:id/overlay.png?width=&height=&highlight=
// 未传宽高时使用第一个有掩码区域的存储尺寸
func (a RegionAPI) renderOverlay(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		web.Fail(c, err)
		return
	}
	q, err := parseOverlayQuery(c)
	if err != nil {
		web.Fail(c, err)
		return
	}
	b, err := a.overlayPNG(c.Request.Context(), id, q)
	if err != nil {
		web.Fail(c, toReason(err))
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", b)
}

func (a RegionAPI) overlayPNG(ctx context.Context, segmentID int64, q overlayQuery) ([]byte, error) {
	regions, err := a.core.ListBySegments(ctx, []int64{segmentID})
	if err != nil {
		return nil, err
	}
	if q.Width == 0 || q.Height == 0 {
		for _, r := range regions {
			if r.HasMask() {
				q.Width, q.Height = r.MaskWidth, r.MaskHeight
				break
			}
		}
	}
	if q.Width <= 0 || q.Height <= 0 {
		return nil, reason.ErrBadRequest.SetMsg("width and height are required")
	}
	items, err := a.masks.Overlay(regions)
	if err != nil {
		return nil, err
	}
	dst, err := newCanvas(q.Width, q.Height)
	if err != nil {
		return nil, err
	}
	if err := a.compositor.Render(dst, items, q.Highlight); err != nil {
		return nil, err
	}
	return overlay.EncodePNG(dst)
}
