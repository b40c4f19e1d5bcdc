// Package mask 单通道二值栅格掩码，以及画笔图层、编解码与轮廓提取
package mask

import (
	"image"
)

const (
	// On 掩码中被选中的像素值
	On uint8 = 255
	// Off 掩码中未选中的像素值
	Off uint8 = 0

	// OnThreshold 合成与轮廓判断时，强度大于该值视为选中
	OnThreshold uint8 = 128
)

// Mask 宽 W 高 H，每像素 1 字节，存储的掩码只会是 0 或 255
// 掩码创建后不应再被修改，合成器以指针作为缓存键
type Mask struct {
	W, H int
	Pix  []uint8
}

// New 创建一个全空的掩码
func New(w, h int) (*Mask, error) {
	if w <= 0 || h <= 0 {
		return nil, &InvalidDimensionsError{W: w, H: h}
	}
	return &Mask{W: w, H: h, Pix: make([]uint8, w*h)}, nil
}

// FromGray 由灰度图构造掩码，保留原始强度，不做二值化
func FromGray(img *image.Gray) (*Mask, error) {
	b := img.Bounds()
	m, err := New(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < m.H; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(m.Pix[y*m.W:(y+1)*m.W], img.Pix[off:off+m.W])
	}
	return m, nil
}

// At 越界返回 Off
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return Off
	}
	return m.Pix[y*m.W+x]
}

// IsOn 强度大于 128 视为选中，越界视为未选中
func (m *Mask) IsOn(x, y int) bool {
	return m.At(x, y) > OnThreshold
}

// Bounds 掩码的像素范围
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.W, m.H)
}

// Empty 不包含任何选中像素
func (m *Mask) Empty() bool {
	if m == nil {
		return true
	}
	for _, v := range m.Pix {
		if v > OnThreshold {
			return false
		}
	}
	return true
}

// Count 选中像素数量
func (m *Mask) Count() int {
	var n int
	for _, v := range m.Pix {
		if v > OnThreshold {
			n++
		}
	}
	return n
}

// IsBinary 所有像素是否均为 0 或 255
func (m *Mask) IsBinary() bool {
	for _, v := range m.Pix {
		if v != On && v != Off {
			return false
		}
	}
	return true
}

// Equal 尺寸与像素完全一致
func (m *Mask) Equal(o *Mask) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.W != o.W || m.H != o.H {
		return false
	}
	for i, v := range m.Pix {
		if o.Pix[i] != v {
			return false
		}
	}
	return true
}

// Clone 深拷贝
func (m *Mask) Clone() *Mask {
	out := Mask{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return &out
}

// Gray 以灰度图视图返回，与掩码共享底层像素
func (m *Mask) Gray() *image.Gray {
	return &image.Gray{Pix: m.Pix, Stride: m.W, Rect: m.Bounds()}
}

// Threshold 返回强度大于 t 的像素为 255 的新掩码
func (m *Mask) Threshold(t uint8) *Mask {
	out := Mask{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	for i, v := range m.Pix {
		if v > t {
			out.Pix[i] = On
		}
	}
	return &out
}

// Fill 将矩形区域置为选中，超出部分裁掉
func (m *Mask) Fill(r image.Rectangle) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[y*m.W+x] = On
		}
	}
}

// Union 两个同尺寸掩码的并集
func Union(a, b *Mask) (*Mask, error) {
	if a.W != b.W || a.H != b.H {
		return nil, &InvalidDimensionsError{W: b.W, H: b.H}
	}
	out := Mask{W: a.W, H: a.H, Pix: make([]uint8, len(a.Pix))}
	for i := range out.Pix {
		if a.Pix[i] > OnThreshold || b.Pix[i] > OnThreshold {
			out.Pix[i] = On
		}
	}
	return &out, nil
}
