package mask

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"

	_ "image/jpeg"

	"golang.org/x/image/draw"
)

const dataURLPrefix = "data:"

// Decode 解析 PNG/JPEG 字节为灰度掩码，保留原始强度
// 带透明通道的图片按预乘后的亮度取值，完全透明的像素为 0
func Decode(b []byte) (*Mask, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, &DecodeError{Reason: "image", Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &InvalidDimensionsError{W: bounds.Dx(), H: bounds.Dy()}
	}
	if g, ok := img.(*image.Gray); ok {
		return FromGray(g)
	}
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return FromGray(gray)
}

// DecodeString 支持 data URL (data:image/png;base64,...) 与裸 base64
func DecodeString(s string) (*Mask, error) {
	b, err := DecodeDataURL(s)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// DecodeDataURL 取出 data URL 或裸 base64 中的原始字节
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &DecodeError{Reason: "empty input"}
	}
	if strings.HasPrefix(s, dataURLPrefix) {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, &DecodeError{Reason: "malformed data url"}
		}
		if !strings.HasSuffix(s[:idx], ";base64") {
			return nil, &DecodeError{Reason: "data url is not base64"}
		}
		s = s[idx+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Reason: "base64", Err: err}
	}
	return b, nil
}

// Encode 无损编码为灰度 PNG
func Encode(m *Mask) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Gray()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeString 编码为 data:image/png;base64
func EncodeString(m *Mask) (string, error) {
	b, err := Encode(m)
	if err != nil {
		return "", err
	}
	return DataURL("image/png", b), nil
}

// DataURL 拼接 data URL
func DataURL(mime string, b []byte) string {
	return dataURLPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

// Rescale 最近邻缩放，保持硬边缘；尺寸一致时原样返回
func Rescale(m *Mask, w, h int) (*Mask, error) {
	if w <= 0 || h <= 0 {
		return nil, &InvalidDimensionsError{W: w, H: h}
	}
	if m.W == w && m.H == h {
		return m, nil
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), m.Gray(), m.Bounds(), draw.Src, nil)
	return &Mask{W: w, H: h, Pix: dst.Pix}, nil
}

// FromExternal 将外部服务返回的概率掩码转换为 targetW x targetH 的二值掩码
// 已是二值且尺寸一致时直接返回原掩码
func FromExternal(prob *Mask, targetW, targetH int) (*Mask, error) {
	if prob == nil {
		return nil, &DecodeError{Reason: "missing mask"}
	}
	if prob.W <= 0 || prob.H <= 0 || len(prob.Pix) != prob.W*prob.H {
		return nil, &InvalidDimensionsError{W: prob.W, H: prob.H}
	}
	if prob.W == targetW && prob.H == targetH && prob.IsBinary() {
		return prob, nil
	}
	return Rescale(prob.Threshold(OnThreshold), targetW, targetH)
}
