package sam

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gowvp/annotator/pkg/mask"
)

func squareBrush(t *testing.T) []byte {
	t.Helper()
	m, _ := mask.New(40, 40)
	m.Fill(image.Rect(10, 10, 30, 30))
	b, err := mask.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSegmentObject(t *testing.T) {
	want, _ := mask.New(20, 20)
	want.Fill(image.Rect(5, 5, 15, 15))
	wantURL, _ := mask.EncodeString(want)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiSegmentObject {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("authorization header %q", got)
		}
		var in SegmentObjectReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Error(err)
		}
		if !strings.HasPrefix(in.BrushMask, "data:image/png;base64,") {
			t.Errorf("brush_mask is not a data url: %.30s", in.BrushMask)
		}
		if in.FrameImage != "" {
			t.Error("frame_image should be omitted")
		}
		_ = json.NewEncoder(w).Encode(SegmentObjectResp{SegmentedMask: wantURL, Confidence: 0.97, Message: "ok"})
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{URL: srv.URL, Token: "abc", Timeout: time.Second})
	res, err := e.SegmentObject(context.Background(), squareBrush(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := mask.Decode(res.Mask)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) || res.Confidence != 0.97 {
		t.Fatalf("unexpected result conf=%v", res.Confidence)
	}
}

func TestSegmentObjectErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"brush_mask is required"}`))
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{URL: srv.URL})
	if _, err := e.SegmentObject(context.Background(), squareBrush(t), nil); err == nil || !strings.Contains(err.Error(), "brush_mask is required") {
		t.Fatalf("expect service error, got %v", err)
	}
	if _, err := e.SegmentObject(context.Background(), nil, nil); err == nil {
		t.Fatal("expect error for empty brush")
	}
	bare := NewEngine()
	if _, err := bare.SegmentObject(context.Background(), squareBrush(t), nil); err == nil {
		t.Fatal("expect error without url")
	}
}

func TestSegmentObjectMalformedMask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"segmented_mask":"data:image/png,notbase64","confidence":0.5}`))
	}))
	defer srv.Close()
	e := NewEngine().SetConfig(Config{URL: srv.URL})
	if _, err := e.SegmentObject(context.Background(), squareBrush(t), nil); err == nil {
		t.Fatal("expect error for malformed mask")
	}
}

func TestSegmentObjectCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	e := NewEngine().SetConfig(Config{URL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := e.SegmentObject(ctx, squareBrush(t), nil); err == nil {
		t.Fatal("expect cancelled request to fail")
	}
}

func TestFallbackSmooth(t *testing.T) {
	res, err := Fallback(squareBrush(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != FallbackConfidence {
		t.Fatalf("confidence %v", res.Confidence)
	}
	m, err := mask.Decode(res.Mask)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsBinary() {
		t.Fatal("fallback result is not binary")
	}
	if !m.IsOn(20, 20) {
		t.Fatal("center of the brush lost")
	}
	if m.IsOn(0, 0) || m.IsOn(39, 39) {
		t.Fatal("corners far from the brush turned on")
	}
}

func TestFallbackClosesGap(t *testing.T) {
	m, _ := mask.New(40, 20)
	m.Fill(image.Rect(5, 5, 19, 15))
	m.Fill(image.Rect(20, 5, 35, 15))
	out := Smooth(m)
	if !out.IsOn(19, 10) {
		t.Fatal("one pixel gap between strokes was not closed")
	}
}

func TestRankFilter(t *testing.T) {
	m, _ := mask.New(9, 9)
	m.Pix[4*9+4] = mask.On
	grown := rankFilter(m, 1, true)
	if grown.Count() != 9 {
		t.Fatalf("max filter grew to %d pixels", grown.Count())
	}
	if shrunk := rankFilter(grown, 1, false); shrunk.Count() != 1 {
		t.Fatalf("min filter left %d pixels", shrunk.Count())
	}
}

func TestFallbackInvalidInput(t *testing.T) {
	if _, err := Fallback([]byte("nope")); err == nil {
		t.Fatal("expect decode error")
	}
}
