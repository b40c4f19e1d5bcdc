package region_test

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/gowvp/annotator/pkg/overlay"
)

// fakeSegmenter 返回固定掩码或错误
type fakeSegmenter struct {
	out   *mask.Mask
	err   error
	calls int
}

func (f *fakeSegmenter) Segment(ctx context.Context, in *region.SegmentRequest) (*region.SegmentResult, error) {
	f.calls++
	if _, err := mask.Decode(in.BrushMask); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	b, err := mask.Encode(f.out)
	if err != nil {
		return nil, err
	}
	return &region.SegmentResult{Mask: b, Confidence: 0.9, Message: "ok"}, nil
}

func paint(t *testing.T, s *region.Session, x, y float64) {
	t.Helper()
	if err := s.Stroke([]mask.Point{{X: x, Y: y}}, 3, mask.ModePaint); err != nil {
		t.Fatal(err)
	}
}

func TestSessionStaleGeneration(t *testing.T) {
	s, err := region.NewSession(1, 20, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	paint(t, s, 10, 10)
	ctx1, gen1, _, err := s.BeginSegmentation(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, gen2, _, err := s.BeginSegmentation(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ctx1.Err() == nil {
		t.Fatal("superseded request was not cancelled")
	}
	m := rectMask(t, 20, 20, image.Rect(0, 0, 5, 5))
	if err := s.AcceptSegmentation(gen1, m); !errors.Is(err, bz.ErrStale) {
		t.Fatalf("expect ErrStale, got %v", err)
	}
	if s.State().HasPending {
		t.Fatal("stale result was applied")
	}
	if err := s.AcceptSegmentation(gen2, m); err != nil {
		t.Fatal(err)
	}
	if !s.State().HasPending {
		t.Fatal("latest result was not applied")
	}
}

func TestSessionBeginRequiresStrokes(t *testing.T) {
	s, _ := region.NewSession(1, 10, 10, 0)
	if _, _, _, err := s.BeginSegmentation(context.Background()); !errors.Is(err, bz.ErrPrecondition) {
		t.Fatalf("expect ErrPrecondition, got %v", err)
	}
}

func TestSessionDiscardPending(t *testing.T) {
	s, _ := region.NewSession(1, 20, 20, 0)
	paint(t, s, 5, 5)
	_, gen, _, _ := s.BeginSegmentation(context.Background())
	s.DiscardPending()
	if s.State().HasStrokes {
		t.Fatal("strokes survived discard")
	}
	// 丢弃后返回的结果视为过期
	if err := s.AcceptSegmentation(gen, rectMask(t, 20, 20, image.Rect(0, 0, 2, 2))); !errors.Is(err, bz.ErrStale) {
		t.Fatalf("expect ErrStale, got %v", err)
	}
	if _, _, err := s.Result(); !errors.Is(err, bz.ErrPrecondition) {
		t.Fatalf("expect nothing to save, got %v", err)
	}
}

func TestSessionEraseSelectedRegion(t *testing.T) {
	s, _ := region.NewSession(1, 20, 20, 1)
	saved := rectMask(t, 20, 20, image.Rect(0, 0, 20, 20))
	if err := s.Select(&region.Region{ID: 3, Label: "car", Color: "#3b82f6"}, saved); err != nil {
		t.Fatal(err)
	}
	if err := s.Stroke([]mask.Point{{X: 10, Y: 10}}, 3, mask.ModeErase); err != nil {
		t.Fatal(err)
	}
	result, brush, err := s.Result()
	if err != nil {
		t.Fatal(err)
	}
	if brush != nil {
		t.Fatal("erase only edit should not produce a brush mask")
	}
	if result.IsOn(10, 10) || !result.IsOn(0, 0) {
		t.Fatal("erase was not applied to the selected region")
	}
	if saved.Count() != 400 {
		t.Fatal("stored mask was modified in place")
	}
	if s.Label() != "car" || s.RegionID() != 3 {
		t.Fatalf("selection lost: %+v", s.State())
	}
}

func TestSessionSelectRescales(t *testing.T) {
	s, _ := region.NewSession(1, 40, 40, 0)
	small := rectMask(t, 20, 20, image.Rect(0, 0, 10, 10))
	if err := s.Select(&region.Region{ID: 1, Color: "#FF4444"}, small); err != nil {
		t.Fatal(err)
	}
	result, _, err := s.Result()
	if err != nil {
		t.Fatal(err)
	}
	if result.W != 40 || result.Count() != 400 {
		t.Fatalf("got %dx%d with %d on pixels", result.W, result.H, result.Count())
	}
}

func TestCoreSegmentFailureKeepsStrokes(t *testing.T) {
	seg := fakeSegmenter{err: errors.New("connection refused")}
	core := newCore(t, region.WithSegmenter(&seg))
	s, _ := region.NewSession(1, 20, 20, 0)
	paint(t, s, 10, 10)

	if _, err := core.Segment(context.Background(), s, nil); !errors.Is(err, bz.ErrExternalService) {
		t.Fatalf("expect ErrExternalService, got %v", err)
	}
	st := s.State()
	if !st.HasStrokes || st.HasPending {
		t.Fatalf("failure changed the session: %+v", st)
	}
	// 失败后仍可用笔迹保存
	r, err := core.SaveSession(context.Background(), s, &region.SaveSessionInput{Label: "dog"})
	if err != nil {
		t.Fatal(err)
	}
	m, _ := r.DecodeMask()
	if !m.IsOn(10, 10) {
		t.Fatal("brush was not saved as the mask")
	}
}

func TestCoreSegmentWithoutService(t *testing.T) {
	core := newCore(t)
	s, _ := region.NewSession(1, 20, 20, 0)
	paint(t, s, 10, 10)
	if _, err := core.Segment(context.Background(), s, nil); !errors.Is(err, bz.ErrExternalService) {
		t.Fatalf("expect ErrExternalService, got %v", err)
	}
}

func TestCoreSegmentAndSave(t *testing.T) {
	// 分割服务以一半分辨率返回结果
	seg := fakeSegmenter{out: rectMask(t, 10, 10, image.Rect(0, 0, 5, 5))}
	core := newCore(t, region.WithSegmenter(&seg))
	ctx := context.Background()
	s, _ := region.NewSession(7, 20, 20, 0)
	paint(t, s, 4, 4)

	out, err := core.Segment(ctx, s, []byte("frame"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Mask.W != 20 || out.Mask.Count() != 100 || out.Confidence != 0.9 {
		t.Fatalf("unexpected output %dx%d count %d", out.Mask.W, out.Mask.H, out.Mask.Count())
	}

	r, err := core.SaveSession(ctx, s, &region.SaveSessionInput{})
	if err != nil {
		t.Fatal(err)
	}
	if r.SegmentID != 7 || r.Color != region.Palette[0] || r.MaskWidth != 20 {
		t.Fatalf("saved %+v", r)
	}
	st := s.State()
	if st.HasStrokes || st.HasPending || st.RegionID != 0 {
		t.Fatalf("session not reset after save: %+v", st)
	}
	if want := region.Palette[1]; !strings.EqualFold(st.Color, want) {
		t.Fatalf("next preview color %s, want %s", st.Color, want)
	}

	// 重新选中后整体替换
	m, _ := r.DecodeMask()
	if err := s.Select(r, m); err != nil {
		t.Fatal(err)
	}
	if err := s.Stroke([]mask.Point{{X: 2, Y: 2}}, 20, mask.ModeErase); err != nil {
		t.Fatal(err)
	}
	paint(t, s, 15, 15)
	edited, err := core.SaveSession(ctx, s, &region.SaveSessionInput{Label: "tree"})
	if err != nil {
		t.Fatal(err)
	}
	if edited.ID != r.ID || edited.Label != "tree" {
		t.Fatalf("expect update of region %d, got %+v", r.ID, edited)
	}
	em, _ := edited.DecodeMask()
	if em.IsOn(2, 2) || !em.IsOn(15, 15) {
		t.Fatal("edited mask does not reflect erase and paint")
	}
	if n, _ := core.CountRegions(ctx, 7); n != 1 {
		t.Fatalf("expect 1 region, got %d", n)
	}
}

func TestSessionRender(t *testing.T) {
	s, _ := region.NewSession(1, 20, 20, 0)
	other := rectMask(t, 20, 20, image.Rect(0, 0, 4, 4))
	c, err := overlay.NewCompositor(8)
	if err != nil {
		t.Fatal(err)
	}
	paint(t, s, 15, 15)
	img, err := s.Render(c, []overlay.Region{{ID: 1, Mask: other}})
	if err != nil {
		t.Fatal(err)
	}
	if img.RGBAAt(1, 1).A == 0 {
		t.Fatal("existing region not drawn")
	}
	if img.RGBAAt(15, 15).A == 0 {
		t.Fatal("stroke preview not drawn")
	}
	if img.RGBAAt(10, 2).A != 0 {
		t.Fatal("background should be transparent")
	}
}

func TestSessionsReplaceAndEvict(t *testing.T) {
	reg := region.NewSessions(time.Minute)
	a, err := reg.Open(1, 10, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	paint(t, a, 5, 5)
	b, _ := reg.Open(1, 10, 10, 0)
	if a.State().HasStrokes {
		t.Fatal("replaced session kept its strokes")
	}
	if got, _ := reg.Get(1); got != b {
		t.Fatal("registry does not return the newest session")
	}
	if n := reg.Evict(time.Now()); n != 0 {
		t.Fatalf("fresh session evicted: %d", n)
	}
	if n := reg.Evict(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expect 1 eviction, got %d", n)
	}
	if _, ok := reg.Get(1); ok {
		t.Fatal("session still registered")
	}
	if reg.Close(1) {
		t.Fatal("close of missing session reported true")
	}
}

func TestSessionsConcurrentOpen(t *testing.T) {
	reg := region.NewSessions(time.Minute)
	const n = 32
	opened := make([]*region.Session, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := reg.Open(7, 10, 10, 0)
			if err != nil {
				t.Error(err)
				return
			}
			if err := sess.Stroke([]mask.Point{{X: 5, Y: 5}}, 3, mask.ModePaint); err != nil {
				t.Error(err)
			}
			opened[i] = sess
		}()
	}
	wg.Wait()

	if reg.Len() != 1 {
		t.Fatalf("expect 1 session, got %d", reg.Len())
	}
	cur, ok := reg.Get(7)
	if !ok {
		t.Fatal("no session registered")
	}
	var found bool
	for _, sess := range opened {
		if sess == cur {
			found = true
		}
	}
	if !found {
		t.Fatal("registered session was not returned by any open")
	}
	if !reg.Close(7) || reg.Len() != 0 {
		t.Fatal("close did not remove the session")
	}
}

func TestSessionPaintAfterSegmentation(t *testing.T) {
	s, _ := region.NewSession(1, 30, 30, 0)
	paint(t, s, 5, 5)
	_, gen, _, err := s.BeginSegmentation(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptSegmentation(gen, rectMask(t, 30, 30, image.Rect(0, 0, 10, 10))); err != nil {
		t.Fatal(err)
	}

	// 分割之后补画与擦除都作用于分割结果
	paint(t, s, 25, 25)
	if err := s.Stroke([]mask.Point{{X: 2, Y: 2}}, 1, mask.ModeErase); err != nil {
		t.Fatal(err)
	}
	result, _, err := s.Result()
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsOn(25, 25) {
		t.Fatal("paint after segmentation was dropped")
	}
	if result.IsOn(2, 2) {
		t.Fatal("erase after segmentation was dropped")
	}
	if !result.IsOn(8, 8) {
		t.Fatal("segmentation result lost")
	}
}
