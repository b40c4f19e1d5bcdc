package mask

import (
	"bytes"
	"image"

	"github.com/gotranspile/gotrace"
)

// Outline 返回轮廓像素下标 (y*W+x)
// 像素自身选中，且 4 邻域中至少一个未选中（含越界）即为轮廓
func Outline(m *Mask) []int {
	out := make([]int, 0, 64)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if !m.IsOn(x, y) {
				continue
			}
			if !m.IsOn(x-1, y) || !m.IsOn(x+1, y) || !m.IsOn(x, y-1) || !m.IsOn(x, y+1) {
				out = append(out, y*m.W+x)
			}
		}
	}
	return out
}

// TraceSVG 将掩码矢量化为 SVG 路径
func TraceSVG(m *Mask) (string, error) {
	// potrace 以深色为前景，反相后交给 gotrace
	inv := image.NewGray(m.Bounds())
	for i, v := range m.Pix {
		if v <= OnThreshold {
			inv.Pix[i] = 255
		}
	}
	paths, err := gotrace.Trace(gotrace.BitmapFromGray(inv, nil), nil)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := gotrace.Render("svg", nil, &buf, paths, m.W, m.H); err != nil {
		return "", err
	}
	return buf.String(), nil
}
