package mask

import (
	"image"
	"image/color"
	"math"
)

// Mode 画笔模式
type Mode string

const (
	ModePaint Mode = "paint"
	ModeErase Mode = "erase"
)

const (
	// PreviewAlpha 绘制预览时笔刷颜色的透明度 (0x66)
	PreviewAlpha uint8 = 0x66
	// BinarizeThreshold 图层 alpha 大于该值即视为被画过
	BinarizeThreshold uint8 = 10
	// DefaultBrushSize 默认笔刷直径，半径为其一半
	DefaultBrushSize = 25
)

// Point 栅格坐标，已由视图变换从屏幕坐标换算过来
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layer 编辑会话中的绘制图层，只记录每个像素的笔刷 alpha
// 颜色仅用于预览，不参与二值化
type Layer struct {
	W, H  int
	Color color.NRGBA
	Alpha []uint8
}

// NewLayer 创建与帧同尺寸的空图层
func NewLayer(w, h int, c color.NRGBA) (*Layer, error) {
	if w <= 0 || h <= 0 {
		return nil, &InvalidDimensionsError{W: w, H: h}
	}
	c.A = PreviewAlpha
	return &Layer{W: w, H: h, Color: c, Alpha: make([]uint8, w*h)}, nil
}

// Empty 图层上没有任何笔迹
func (l *Layer) Empty() bool {
	for _, a := range l.Alpha {
		if a > BinarizeThreshold {
			return false
		}
	}
	return true
}

// Clear 清空笔迹
func (l *Layer) Clear() {
	clear(l.Alpha)
}

// Stroke 沿路径逐点绘制实心圆
// 绘制为并集，擦除为差集，同一像素重复操作结果不变
// 参数校验失败时图层保持不变
func (l *Layer) Stroke(path []Point, radius float64, mode Mode) error {
	if err := checkBrush(path, radius, mode); err != nil {
		return err
	}
	v := PreviewAlpha
	if mode == ModeErase {
		v = 0
	}
	walkPath(path, radius, l.W, l.H, func(cx, cy float64) {
		fillCircle(l.W, l.H, cx, cy, radius, func(i int) {
			l.Alpha[i] = v
		})
	})
	return nil
}

// NRGBA 以预览色渲染图层
func (l *Layer) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, l.W, l.H))
	for i, a := range l.Alpha {
		if a == 0 {
			continue
		}
		img.Pix[i*4+0] = l.Color.R
		img.Pix[i*4+1] = l.Color.G
		img.Pix[i*4+2] = l.Color.B
		img.Pix[i*4+3] = a
	}
	return img
}

// Binarize 图层 alpha 大于 10 的像素变为 255，其余为 0
func Binarize(l *Layer) *Mask {
	m := Mask{W: l.W, H: l.H, Pix: make([]uint8, len(l.Alpha))}
	for i, a := range l.Alpha {
		if a > BinarizeThreshold {
			m.Pix[i] = On
		}
	}
	return &m
}

// LayerFromMask 把二值掩码还原成图层，用于重新编辑已有区域
func LayerFromMask(m *Mask, c color.NRGBA) *Layer {
	c.A = PreviewAlpha
	l := Layer{W: m.W, H: m.H, Color: c, Alpha: make([]uint8, len(m.Pix))}
	for i, v := range m.Pix {
		if v > OnThreshold {
			l.Alpha[i] = PreviewAlpha
		}
	}
	return &l
}

// EraseStroke 在掩码副本上擦除笔迹，原掩码不变
func (m *Mask) EraseStroke(path []Point, radius float64) (*Mask, error) {
	return m.applyStroke(path, radius, ModeErase)
}

// PaintStroke 在掩码副本上补画笔迹，原掩码不变
func (m *Mask) PaintStroke(path []Point, radius float64) (*Mask, error) {
	return m.applyStroke(path, radius, ModePaint)
}

func (m *Mask) applyStroke(path []Point, radius float64, mode Mode) (*Mask, error) {
	if err := checkBrush(path, radius, mode); err != nil {
		return nil, err
	}
	v := On
	if mode == ModeErase {
		v = Off
	}
	out := m.Clone()
	walkPath(path, radius, out.W, out.H, func(cx, cy float64) {
		fillCircle(out.W, out.H, cx, cy, radius, func(i int) {
			out.Pix[i] = v
		})
	})
	return out, nil
}

// maxCoord 坐标与半径的绝对值上限，超出后差值运算会溢出
const maxCoord = 1e15

func checkBrush(path []Point, radius float64, mode Mode) error {
	if !finite(radius) || radius <= 0 {
		return ErrInvalidBrush
	}
	if mode != ModePaint && mode != ModeErase {
		return ErrInvalidBrush
	}
	for _, p := range path {
		if !finite(p.X) || !finite(p.Y) {
			return ErrInvalidBrush
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && math.Abs(v) <= maxCoord
}

// walkPath 依次访问路径上的采样点，两点间按半径的一半插值，避免快速拖动时出现断点
// 每段先裁剪到画布外扩 radius 的矩形内，画布外的部分不会留下笔迹，也不参与插值
func walkPath(path []Point, radius float64, w, h int, fn func(x, y float64)) {
	step := math.Max(radius/2, 1)
	box := rect{minX: -radius, minY: -radius, maxX: float64(w) + radius, maxY: float64(h) + radius}
	for i, p := range path {
		if i == 0 {
			if box.contains(p) {
				fn(p.X, p.Y)
			}
			continue
		}
		prev := path[i-1]
		a, b, ok := box.clip(prev, p)
		if !ok {
			continue
		}
		if a != prev {
			fn(a.X, a.Y)
		}
		dx, dy := b.X-a.X, b.Y-a.Y
		dist := math.Hypot(dx, dy)
		for s := step; s < dist; s += step {
			t := s / dist
			fn(a.X+dx*t, a.Y+dy*t)
		}
		fn(b.X, b.Y)
	}
}

type rect struct {
	minX, minY, maxX, maxY float64
}

func (r rect) contains(p Point) bool {
	return p.X >= r.minX && p.X <= r.maxX && p.Y >= r.minY && p.Y <= r.maxY
}

// clip Liang-Barsky 线段裁剪，线段与矩形不相交时 ok 为 false
func (r rect) clip(p0, p1 Point) (a, b Point, ok bool) {
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, p0.X - r.minX},
		{dx, r.maxX - p0.X},
		{-dy, p0.Y - r.minY},
		{dy, r.maxY - p0.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		v := q / p
		if p < 0 {
			if v > t1 {
				return a, b, false
			}
			t0 = max(t0, v)
		} else {
			if v < t0 {
				return a, b, false
			}
			t1 = min(t1, v)
		}
	}
	a, b = p0, p1
	if t0 > 0 {
		a = Point{X: p0.X + dx*t0, Y: p0.Y + dy*t0}
	}
	if t1 < 1 {
		b = Point{X: p0.X + dx*t1, Y: p0.Y + dy*t1}
	}
	return a, b, true
}

// fillCircle 以像素中心判断是否落在圆内
func fillCircle(w, h int, cx, cy, r float64, set func(i int)) {
	x0 := max(int(math.Floor(cx-r)), 0)
	x1 := min(int(math.Ceil(cx+r)), w-1)
	y0 := max(int(math.Floor(cy-r)), 0)
	y1 := min(int(math.Ceil(cy+r)), h-1)
	r2 := r * r
	for y := y0; y <= y1; y++ {
		dy := float64(y) + 0.5 - cy
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx+dy*dy <= r2 {
				set(y*w + x)
			}
		}
	}
}
