package sam

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gowvp/annotator/pkg/mask"
)

// FallbackConfidence 本地平滑结果的置信度
const FallbackConfidence = 0.85

// FallbackMessage 本地平滑结果的提示
const FallbackMessage = "Segmentation completed (fallback - SAM2 not available)"

// Fallback 不依赖模型，对笔迹做平滑与闭运算
// blur(3) > 128, max 5x5, min 3x3, blur(2) > 100
func Fallback(brush []byte) (*Result, error) {
	m, err := mask.Decode(brush)
	if err != nil {
		return nil, err
	}
	out := Smooth(m)
	b, err := mask.Encode(out)
	if err != nil {
		return nil, fmt.Errorf("sam: encode fallback mask: %w", err)
	}
	return &Result{Mask: b, Confidence: FallbackConfidence, Message: FallbackMessage}, nil
}

// Smooth 返回新的二值掩码
func Smooth(m *mask.Mask) *mask.Mask {
	out := blurThreshold(m, 3, 128)
	out = rankFilter(out, 2, true)
	out = rankFilter(out, 1, false)
	return blurThreshold(out, 2, 100)
}

func blurThreshold(m *mask.Mask, sigma float64, t uint8) *mask.Mask {
	img := imaging.Blur(m.Gray(), sigma)
	out := mask.Mask{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	for y := 0; y < m.H; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < m.W; x++ {
			if row[x*4] > t {
				out.Pix[y*m.W+x] = mask.On
			}
		}
	}
	return &out
}

// rankFilter 方形窗口 (2r+1) 的最大或最小值滤波，先横向再纵向
// 窗口越界部分不参与比较
func rankFilter(m *mask.Mask, r int, isMax bool) *mask.Mask {
	pick := func(a, b uint8) uint8 {
		if (a > b) == isMax {
			return a
		}
		return b
	}
	tmp := make([]uint8, len(m.Pix))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			v := m.Pix[y*m.W+x]
			for dx := -r; dx <= r; dx++ {
				if nx := x + dx; nx >= 0 && nx < m.W {
					v = pick(v, m.Pix[y*m.W+nx])
				}
			}
			tmp[y*m.W+x] = v
		}
	}
	out := mask.Mask{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			v := tmp[y*m.W+x]
			for dy := -r; dy <= r; dy++ {
				if ny := y + dy; ny >= 0 && ny < m.H {
					v = pick(v, tmp[ny*m.W+x])
				}
			}
			out.Pix[y*m.W+x] = v
		}
	}
	return &out
}
