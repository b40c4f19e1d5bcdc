// Package sam 调用外部的 SAM2 分割服务
package sam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gowvp/annotator/pkg/mask"
)

const apiSegmentObject = "/api/segments/segment-object"

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
	// Fallback 服务不可用时使用本地平滑处理
	Fallback bool
}

type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cli: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
			},
		},
	}
}

func (e Engine) SetConfig(cfg Config) Engine {
	e.cfg = cfg
	if cfg.Timeout > 0 {
		cli := *e.cli
		cli.Timeout = cfg.Timeout
		e.cli = &cli
	}
	return e
}

// Config 当前配置
func (e Engine) Config() Config {
	return e.cfg
}

// SegmentObjectReq 图片均为 data URL
type SegmentObjectReq struct {
	BrushMask  string `json:"brush_mask"`
	FrameImage string `json:"frame_image,omitempty"`
}

type SegmentObjectResp struct {
	SegmentedMask string  `json:"segmented_mask"`
	Confidence    float64 `json:"confidence"`
	Message       string  `json:"message"`
	Error         string  `json:"error"`
}

// Result 分割结果，Mask 为解码后的 PNG
type Result struct {
	Mask       []byte
	Confidence float64
	Message    string
}

// SegmentObject brush 为二值笔迹 PNG，frame 为当前帧图片，可为空
func (e *Engine) SegmentObject(ctx context.Context, brush, frame []byte) (*Result, error) {
	if len(brush) == 0 {
		return nil, fmt.Errorf("sam: brush_mask is required")
	}
	if e.cfg.URL == "" {
		return nil, fmt.Errorf("sam: service url is empty")
	}
	in := SegmentObjectReq{BrushMask: mask.DataURL("image/png", brush)}
	if len(frame) > 0 {
		in.FrameImage = mask.DataURL(http.DetectContentType(frame), frame)
	}

	var out SegmentObjectResp
	if err := e.post(ctx, apiSegmentObject, in, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("sam: %s", out.Error)
	}
	b, err := mask.DecodeDataURL(out.SegmentedMask)
	if err != nil {
		return nil, fmt.Errorf("sam: segmented_mask: %w", err)
	}
	return &Result{Mask: b, Confidence: out.Confidence, Message: out.Message}, nil
}

func (e *Engine) post(ctx context.Context, path string, data, out any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sam: marshal request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sam: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	}
	resp, err := e.cli.Do(req)
	if err != nil {
		return fmt.Errorf("sam: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("sam: read response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp SegmentObjectResp
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("sam: status %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("sam: unexpected status code %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("sam: decode response failed: %w", err)
	}
	return nil
}
