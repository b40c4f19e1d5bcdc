package caption

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gowvp/annotator/pkg/mask"
)

// DefaultFrameCount 描述模型固定接收 8 帧
const DefaultFrameCount = 8

type FrameOptions struct {
	Count int
	// MaxSide 帧的长边上限，0 表示不缩放
	MaxSide int
}

// PadOrSample 不足 n 帧时重复最后一帧，多于 n 帧时均匀采样
func PadOrSample[T any](frames []T, n int) []T {
	if len(frames) == 0 || n <= 0 {
		return nil
	}
	out := make([]T, n)
	if len(frames) >= n {
		step := float64(len(frames)) / float64(n)
		for i := range out {
			out[i] = frames[int(float64(i)*step)]
		}
		return out
	}
	copy(out, frames)
	for i := len(frames); i < n; i++ {
		out[i] = frames[len(frames)-1]
	}
	return out
}

// RGBA 以掩码作为 alpha 通道合成 PNG data URL，掩码按最近邻缩放到帧尺寸
// m 为 nil 时整帧不透明
func RGBA(frame []byte, m *mask.Mask, maxSide int) (string, error) {
	src, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	if b := src.Bounds(); maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		src = imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)
	}
	img := imaging.Clone(src)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	var alpha *mask.Mask
	if m != nil {
		if alpha, err = mask.Rescale(m, w, h); err != nil {
			return "", err
		}
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			a := mask.On
			if alpha != nil {
				a = alpha.Pix[y*w+x]
			}
			row[x*4+3] = a
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return mask.DataURL("image/png", buf.Bytes()), nil
}
