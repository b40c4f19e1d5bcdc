package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gowvp/annotator/internal/core/caption"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// CaptionAPI 区域与片段的描述
type CaptionAPI struct {
	core    caption.Core
	regions region.Core
	masks   *MaskCache
}

func NewCaptionAPI(core caption.Core, regions region.Core, masks *MaskCache) CaptionAPI {
	return CaptionAPI{core: core, regions: regions, masks: masks}
}

func registerCaption(g gin.IRouter, api CaptionAPI, handler ...gin.HandlerFunc) {
	g.Group("/segments/:id", handler...).GET("/captions", web.WrapH(api.findCaptions))
	{
		group := g.Group("/captions", handler...)
		group.POST("", web.WrapH(api.saveCaption))
		group.POST("/generate", web.WrapH(api.generate))
		group.POST("/generate/batch", web.WrapH(api.generateBatch))
		group.GET("/:id", web.WrapH(api.getCaption))
		group.PUT("/:id", web.WrapH(api.editCaption))
		group.DELETE("/:id", web.WrapH(api.delCaption))
		group.POST("/:id/translate", web.WrapH(api.translate))
		group.POST("/:id/combine", web.WrapH(api.combine))
	}
}

func (a CaptionAPI) findCaptions(c *gin.Context, _ *struct{}) (any, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	items, err := a.core.FindCaptions(c.Request.Context(), id)
	return gin.H{"items": items}, toReason(err)
}

type saveCaptionOutput struct {
	*caption.Caption
	Created bool `json:"created"`
}

// saveCaption 同一区域只保留一条描述，已存在时覆盖传入的字段
func (a CaptionAPI) saveCaption(c *gin.Context, in *caption.SaveCaptionInput) (*saveCaptionOutput, error) {
	out, created, err := a.core.SaveCaption(c.Request.Context(), in)
	if err != nil {
		return nil, toReason(err)
	}
	return &saveCaptionOutput{Caption: out, Created: created}, nil
}

func (a CaptionAPI) getCaption(c *gin.Context, _ *struct{}) (*caption.Caption, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.GetCaption(c.Request.Context(), id)
	return out, toReason(err)
}

func (a CaptionAPI) editCaption(c *gin.Context, in *caption.EditCaptionInput) (*caption.Caption, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.EditCaption(c.Request.Context(), in, id)
	return out, toReason(err)
}

func (a CaptionAPI) delCaption(c *gin.Context, _ *struct{}) (*caption.Caption, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.DelCaption(c.Request.Context(), id)
	return out, toReason(err)
}

// generateInput 帧按时间顺序传入，掩码可直接给出或取自 RegionID
type generateInput struct {
	Frames   []string     `json:"frames"`
	RegionID int64        `json:"region_id"`
	Mask     string       `json:"mask"`
	Type     caption.Kind `json:"type"`
}

func (a CaptionAPI) decode(c *gin.Context, in *generateInput) (*caption.GenerateInput, error) {
	out := caption.GenerateInput{Kind: in.Type, Frames: make([][]byte, len(in.Frames))}
	for i, f := range in.Frames {
		b, err := mask.DecodeDataURL(f)
		if err != nil {
			return nil, reason.ErrBadRequest.Withf("frames[%d]: %s", i, err.Error())
		}
		out.Frames[i] = b
	}
	switch {
	case in.Mask != "":
		m, err := mask.DecodeString(in.Mask)
		if err != nil {
			return nil, toReason(err)
		}
		out.Mask = m
	case in.RegionID != 0:
		r, err := a.regions.GetRegion(c.Request.Context(), in.RegionID)
		if err != nil {
			return nil, toReason(err)
		}
		m, err := a.masks.Get(r)
		if err != nil {
			return nil, toReason(err)
		}
		out.Mask = m
	}
	return &out, nil
}

type generateOutput struct {
	Caption string `json:"caption"`
}

func (a CaptionAPI) generate(c *gin.Context, in *generateInput) (*generateOutput, error) {
	gi, err := a.decode(c, in)
	if err != nil {
		return nil, err
	}
	text, err := a.core.GenerateCaption(c.Request.Context(), gi)
	if err != nil {
		return nil, toReason(err)
	}
	return &generateOutput{Caption: text}, nil
}

// generateBatch 同时生成 visual 与 contextual，单项失败记入 warnings
func (a CaptionAPI) generateBatch(c *gin.Context, in *generateInput) (*caption.GenerateOutput, error) {
	gi, err := a.decode(c, in)
	if err != nil {
		return nil, err
	}
	out, err := a.core.GenerateBatch(c.Request.Context(), gi)
	return out, toReason(err)
}

func (a CaptionAPI) translate(c *gin.Context, in *caption.TranslateInput) (*caption.Caption, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.TranslateCaption(c.Request.Context(), id, in)
	return out, toReason(err)
}

func (a CaptionAPI) combine(c *gin.Context, in *caption.CombineInput) (*caption.Caption, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	out, err := a.core.CombineCaption(c.Request.Context(), id, in)
	return out, toReason(err)
}
