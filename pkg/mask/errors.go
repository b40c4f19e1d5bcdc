package mask

import (
	"errors"
	"fmt"
)

// ErrInvalidBrush 画笔半径或模式非法
var ErrInvalidBrush = errors.New("mask: invalid brush")

// InvalidDimensionsError 宽高为 0 或负数
type InvalidDimensionsError struct {
	W, H int
}

func (e *InvalidDimensionsError) Error() string {
	return fmt.Sprintf("mask: invalid dimensions %dx%d", e.W, e.H)
}

// DecodeError 掩码编码无法解析
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "mask: decode: " + e.Reason
	}
	return fmt.Sprintf("mask: decode: %s: %s", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
