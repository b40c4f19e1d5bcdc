// Package overlay 把多个区域掩码合成为半透明彩色叠加层，并描出 1 像素轮廓
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/gowvp/annotator/pkg/mask"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"
)

// 填充透明度 (0~255)
const (
	AlphaNormal    uint8 = 90
	AlphaHighlight uint8 = 140
	AlphaDimmed    uint8 = 50
)

// Region 参与合成的区域，Mask 为 nil 表示尚未分割
type Region struct {
	ID    int64
	Color color.RGBA
	Mask  *mask.Mask
}

type outlineKey struct {
	m    *mask.Mask
	w, h int
}

type outlineEntry struct {
	scaled  *mask.Mask
	empty   bool
	outline []int
}

// Compositor 按掩码指针缓存缩放结果与轮廓，切换高亮时无需重算
type Compositor struct {
	cache *lru.Cache[outlineKey, *outlineEntry]
}

// NewCompositor size 为缓存的掩码数量上限
func NewCompositor(size int) (*Compositor, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[outlineKey, *outlineEntry](size)
	if err != nil {
		return nil, err
	}
	return &Compositor{cache: c}, nil
}

// Render 清空 dst 后按顺序合成 regions，后面的区域覆盖前面的
// highlight 为 0 表示无高亮
func (c *Compositor) Render(dst *image.RGBA, regions []Region, highlight int64) error {
	clear(dst.Pix)
	b := dst.Bounds()
	for _, r := range regions {
		if r.Mask == nil {
			continue
		}
		e, err := c.entry(r.Mask, b.Dx(), b.Dy())
		if err != nil {
			return fmt.Errorf("overlay: region[%d]: %w", r.ID, err)
		}
		if e.empty {
			continue
		}

		a := AlphaNormal
		if highlight != 0 {
			a = AlphaDimmed
			if r.ID == highlight {
				a = AlphaHighlight
			}
		}
		fill(dst, e.scaled, r.Color, a)

		col := r.Color
		col.A = 0xff
		for _, i := range e.outline {
			dst.SetRGBA(b.Min.X+i%e.scaled.W, b.Min.Y+i/e.scaled.W, col)
		}
	}
	return nil
}

// Len 缓存中的掩码数量
func (c *Compositor) Len() int {
	return c.cache.Len()
}

func (c *Compositor) entry(m *mask.Mask, w, h int) (*outlineEntry, error) {
	key := outlineKey{m: m, w: w, h: h}
	if e, ok := c.cache.Get(key); ok {
		return e, nil
	}
	scaled, err := mask.Rescale(m, w, h)
	if err != nil {
		return nil, err
	}
	e := outlineEntry{scaled: scaled, empty: scaled.Empty()}
	if !e.empty {
		e.outline = mask.Outline(scaled)
	}
	c.cache.Add(key, &e)
	return &e, nil
}

func fill(dst *image.RGBA, m *mask.Mask, col color.RGBA, a uint8) {
	alpha := image.NewAlpha(m.Bounds())
	for i, v := range m.Pix {
		if v > mask.OnThreshold {
			alpha.Pix[i] = a
		}
	}
	col.A = 0xff
	draw.DrawMask(dst, dst.Bounds(), image.NewUniform(col), image.Point{}, alpha, image.Point{}, draw.Over)
}

// DrawLayer 把编辑中的笔刷图层以预览色叠加到 dst
func DrawLayer(dst *image.RGBA, l *mask.Layer) {
	draw.Draw(dst, dst.Bounds(), l.NRGBA(), image.Point{}, draw.Over)
}

// EncodePNG 编码合成结果
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseColor 解析 #RRGGBB
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("overlay: invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("overlay: invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
