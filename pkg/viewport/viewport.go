// Package viewport 画布缩放与平移，负责屏幕坐标与栅格坐标的互相换算
package viewport

import (
	"math"

	"github.com/gowvp/annotator/pkg/mask"
)

const (
	MinZoom = 0.25
	MaxZoom = 5.0

	// WheelStep 滚轮每格的缩放步进
	WheelStep = 0.1
	// ButtonStep 按钮/快捷键的缩放步进
	ButtonStep = 0.25
)

// Transform 屏幕坐标 = (栅格坐标 + 平移) * 缩放
// 平移以栅格像素为单位，不做边界限制
type Transform struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

// New 缩放为 1，无平移
func New() Transform {
	return Transform{Zoom: 1}
}

// Reset 恢复缩放为 1，平移为 0
func (t *Transform) Reset() {
	*t = New()
}

// SetZoom 超出 [0.25, 5] 时截断
func (t *Transform) SetZoom(z float64) {
	t.Zoom = min(max(z, MinZoom), MaxZoom)
}

func (t *Transform) ZoomIn()  { t.SetZoom(t.Zoom + ButtonStep) }
func (t *Transform) ZoomOut() { t.SetZoom(t.Zoom - ButtonStep) }

// Wheel deltaY < 0 放大，> 0 缩小
func (t *Transform) Wheel(deltaY float64) {
	switch {
	case deltaY < 0:
		t.SetZoom(t.Zoom + WheelStep)
	case deltaY > 0:
		t.SetZoom(t.Zoom - WheelStep)
	}
}

// Pan 拖动画布，屏幕位移需除以缩放换算为栅格位移
func (t *Transform) Pan(dxScreen, dyScreen float64) {
	t.PanX += dxScreen / t.zoom()
	t.PanY += dyScreen / t.zoom()
}

// ScreenToRaster 屏幕坐标（相对画布元素左上角，CSS 像素）转栅格坐标
func (t Transform) ScreenToRaster(p mask.Point) mask.Point {
	z := t.zoom()
	return mask.Point{X: p.X/z - t.PanX, Y: p.Y/z - t.PanY}
}

// RasterToScreen 栅格坐标转屏幕坐标
func (t Transform) RasterToScreen(p mask.Point) mask.Point {
	z := t.zoom()
	return mask.Point{X: (p.X + t.PanX) * z, Y: (p.Y + t.PanY) * z}
}

// Path 批量换算一次拖动的采样点
func (t Transform) Path(screen []mask.Point) []mask.Point {
	out := make([]mask.Point, len(screen))
	for i, p := range screen {
		out[i] = t.ScreenToRaster(p)
	}
	return out
}

// zoom 零值 Transform 视为 1 倍
// 直接由请求体解码的 Transform 不经过 SetZoom，换算时同样截断到 [0.25, 5]
func (t Transform) zoom() float64 {
	if t.Zoom == 0 || math.IsNaN(t.Zoom) {
		return 1
	}
	return min(max(t.Zoom, MinZoom), MaxZoom)
}
