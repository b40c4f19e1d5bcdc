package mask

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"
)

var red = color.NRGBA{R: 0xff, G: 0x44, B: 0x44, A: 0xff}

func TestBinarizeIdempotent(t *testing.T) {
	l, err := NewLayer(40, 30, red)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Stroke([]Point{{X: 5, Y: 5}, {X: 30, Y: 20}}, 4, ModePaint); err != nil {
		t.Fatal(err)
	}
	// 低于阈值的残留 alpha 不算画过
	l.Alpha[0] = 9

	first := Binarize(l)
	again := Binarize(LayerFromMask(first, red))
	if !first.Equal(again) {
		t.Fatal("binarize of a binary mask changed pixels")
	}
	if first.At(0, 0) != Off {
		t.Fatalf("alpha 9 should stay off, got %d", first.At(0, 0))
	}
	if !first.IsBinary() {
		t.Fatal("binarize produced non binary pixels")
	}
}

func TestBinarizeIgnoresPreviewColor(t *testing.T) {
	a, _ := NewLayer(20, 20, red)
	b, _ := NewLayer(20, 20, color.NRGBA{B: 0xff, A: 0x10})
	path := []Point{{X: 10, Y: 10}}
	_ = a.Stroke(path, 5, ModePaint)
	_ = b.Stroke(path, 5, ModePaint)
	_ = b.Stroke(path, 5, ModePaint)
	if !Binarize(a).Equal(Binarize(b)) {
		t.Fatal("binarize depends on preview color or repeated strokes")
	}
}

func TestFromExternalIdentity(t *testing.T) {
	m, _ := New(16, 9)
	m.Fill(image.Rect(2, 2, 8, 6))
	out, err := FromExternal(m, 16, 9)
	if err != nil {
		t.Fatal(err)
	}
	if out != m {
		t.Fatal("matching dimensions should return the same mask")
	}
}

func TestFromExternalRescale(t *testing.T) {
	prob, _ := New(4, 4)
	for i := range prob.Pix {
		prob.Pix[i] = 100
	}
	// 左上 2x2 为高概率
	for _, i := range []int{0, 1, 4, 5} {
		prob.Pix[i] = 200
	}
	out, err := FromExternal(prob, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if out.W != 8 || out.H != 8 {
		t.Fatalf("got %dx%d", out.W, out.H)
	}
	if !out.IsBinary() {
		t.Fatal("rescaled mask is not binary")
	}
	if out.Count() != 16 {
		t.Fatalf("expect 16 on pixels, got %d", out.Count())
	}
	if !out.IsOn(3, 3) || out.IsOn(4, 4) {
		t.Fatal("nearest neighbour placed pixels wrongly")
	}
}

func TestFromExternalInvalid(t *testing.T) {
	if _, err := FromExternal(nil, 4, 4); err == nil {
		t.Fatal("expect error for nil mask")
	} else if !errors.As(err, new(*DecodeError)) {
		t.Fatalf("expect DecodeError, got %T", err)
	}
	m, _ := New(2, 2)
	if _, err := FromExternal(m, 0, 4); !errors.As(err, new(*InvalidDimensionsError)) {
		t.Fatalf("expect InvalidDimensionsError, got %v", err)
	}
}

func TestNewInvalidDimensions(t *testing.T) {
	for _, v := range [][2]int{{0, 1}, {1, 0}, {-3, 4}} {
		if _, err := New(v[0], v[1]); !errors.As(err, new(*InvalidDimensionsError)) {
			t.Fatalf("New(%d,%d) expect InvalidDimensionsError, got %v", v[0], v[1], err)
		}
	}
}

func TestPaintEraseCommute(t *testing.T) {
	a := []Point{{X: 10, Y: 10}}
	b := []Point{{X: 40, Y: 40}}

	l1, _ := NewLayer(60, 60, red)
	_ = l1.Stroke(a, 6, ModePaint)
	_ = l1.Stroke(b, 6, ModeErase)

	l2, _ := NewLayer(60, 60, red)
	_ = l2.Stroke(b, 6, ModeErase)
	_ = l2.Stroke(a, 6, ModePaint)

	if !Binarize(l1).Equal(Binarize(l2)) {
		t.Fatal("paint/erase on disjoint circles depends on order")
	}
}

func TestStrokeErase(t *testing.T) {
	l, _ := NewLayer(30, 30, red)
	_ = l.Stroke([]Point{{X: 15, Y: 15}}, 10, ModePaint)
	_ = l.Stroke([]Point{{X: 15, Y: 15}}, 3, ModeErase)
	m := Binarize(l)
	if m.IsOn(15, 15) {
		t.Fatal("center should be erased")
	}
	if !m.IsOn(15, 8) {
		t.Fatal("ring outside the eraser should remain")
	}
}

func TestStrokeInterpolates(t *testing.T) {
	l, _ := NewLayer(100, 10, red)
	_ = l.Stroke([]Point{{X: 2, Y: 5}, {X: 97, Y: 5}}, 2, ModePaint)
	m := Binarize(l)
	for x := 2; x < 97; x++ {
		if !m.IsOn(x, 5) {
			t.Fatalf("gap at x=%d", x)
		}
	}
}

func TestStrokeInvalidLeavesLayer(t *testing.T) {
	l, _ := NewLayer(10, 10, red)
	_ = l.Stroke([]Point{{X: 5, Y: 5}}, 2, ModePaint)
	before := Binarize(l)
	if err := l.Stroke([]Point{{X: 1, Y: 1}}, 0, ModeErase); !errors.Is(err, ErrInvalidBrush) {
		t.Fatalf("expect ErrInvalidBrush, got %v", err)
	}
	if err := l.Stroke([]Point{{X: 1, Y: 1}}, 2, Mode("smudge")); !errors.Is(err, ErrInvalidBrush) {
		t.Fatalf("expect ErrInvalidBrush, got %v", err)
	}
	if !before.Equal(Binarize(l)) {
		t.Fatal("rejected stroke mutated the layer")
	}
}

func TestStrokeFarPointClipped(t *testing.T) {
	l, _ := NewLayer(64, 64, red)
	done := make(chan error, 1)
	go func() {
		done <- l.Stroke([]Point{{X: 10, Y: 10}, {X: 1e10, Y: 10}}, 1, ModePaint)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stroke towards a far point did not finish")
	}
	m := Binarize(l)
	for x := 10; x < 64; x++ {
		if !m.IsOn(x, 10) {
			t.Fatalf("gap at x=%d", x)
		}
	}
	if m.IsOn(5, 10) || m.IsOn(10, 20) {
		t.Fatal("painted outside the stroke")
	}
}

func TestStrokeCrossingCanvas(t *testing.T) {
	l, _ := NewLayer(32, 32, red)
	if err := l.Stroke([]Point{{X: -1e12, Y: 20}, {X: 1e12, Y: 20}}, 1, ModePaint); err != nil {
		t.Fatal(err)
	}
	m := Binarize(l)
	for x := range 32 {
		if !m.IsOn(x, 20) {
			t.Fatalf("gap at x=%d", x)
		}
	}

	// 整段在画布之外
	l2, _ := NewLayer(32, 32, red)
	_ = l2.Stroke([]Point{{X: -1e12, Y: -50}, {X: 1e12, Y: -50}}, 2, ModePaint)
	if !l2.Empty() {
		t.Fatal("off-canvas stroke left pixels")
	}

	src, _ := New(32, 32)
	src.Fill(image.Rect(0, 0, 32, 32))
	out, err := src.EraseStroke([]Point{{X: 16, Y: -1e9}, {X: 16, Y: 1e9}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out.IsOn(16, 0) || out.IsOn(16, 31) || !out.IsOn(0, 0) {
		t.Fatal("erase across canvas not applied")
	}
}

func TestStrokeRejectsNonFinitePoint(t *testing.T) {
	l, _ := NewLayer(10, 10, red)
	for _, p := range []Point{{X: math.NaN(), Y: 1}, {X: 1, Y: math.Inf(1)}, {X: math.Inf(-1), Y: 1}} {
		if err := l.Stroke([]Point{{X: 5, Y: 5}, p}, 2, ModePaint); !errors.Is(err, ErrInvalidBrush) {
			t.Fatalf("point %v: expect ErrInvalidBrush, got %v", p, err)
		}
	}
	if !l.Empty() {
		t.Fatal("rejected stroke mutated the layer")
	}
}

func TestEraseStrokeKeepsOriginal(t *testing.T) {
	m, _ := New(20, 20)
	m.Fill(m.Bounds())
	out, err := m.EraseStroke([]Point{{X: 10, Y: 10}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if m.Count() != 400 {
		t.Fatal("original mask was modified")
	}
	if out.IsOn(10, 10) || out.Count() >= 400 {
		t.Fatal("erase had no effect on the copy")
	}
}

func TestPaintStrokeKeepsOriginal(t *testing.T) {
	m, _ := New(20, 20)
	out, err := m.PaintStroke([]Point{{X: 2, Y: 10}, {X: 17, Y: 10}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Empty() {
		t.Fatal("original mask was modified")
	}
	if !out.IsOn(2, 10) || !out.IsOn(10, 10) || !out.IsOn(17, 10) || out.IsOn(10, 0) {
		t.Fatal("paint not applied along the path")
	}
	if _, err := m.PaintStroke([]Point{{X: 1, Y: 1}}, 0); !errors.Is(err, ErrInvalidBrush) {
		t.Fatalf("expect ErrInvalidBrush, got %v", err)
	}
}

func TestOutlineSquare(t *testing.T) {
	m, _ := New(32, 32)
	m.Fill(image.Rect(0, 0, 10, 10))
	idx := Outline(m)
	if len(idx) != 36 {
		t.Fatalf("expect 36 boundary pixels, got %d", len(idx))
	}
	for _, i := range idx {
		x, y := i%m.W, i/m.W
		if x > 0 && x < 9 && y > 0 && y < 9 {
			t.Fatalf("interior pixel (%d,%d) marked as boundary", x, y)
		}
	}
}

func TestOutlineEmpty(t *testing.T) {
	m, _ := New(8, 8)
	if n := len(Outline(m)); n != 0 {
		t.Fatalf("expect no outline, got %d", n)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	m, _ := New(12, 7)
	m.Fill(image.Rect(3, 1, 9, 5))
	s, err := EncodeString(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(m) {
		t.Fatal("decoded mask differs")
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []string{"", "data:image/png;base64", "data:image/png,abc", "!!!notbase64", "aGVsbG8="}
	for _, s := range cases {
		_, err := DecodeString(s)
		if !errors.As(err, new(*DecodeError)) {
			t.Fatalf("input %q: expect DecodeError, got %v", s, err)
		}
	}
}

func TestDecodeTransparentIsOff(t *testing.T) {
	l, _ := NewLayer(10, 10, red)
	_ = l.Stroke([]Point{{X: 5, Y: 5}}, 2, ModePaint)
	var buf bytes.Buffer
	if err := png.Encode(&buf, l.NRGBA()); err != nil {
		t.Fatal(err)
	}
	m, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if m.At(0, 0) != 0 {
		t.Fatalf("transparent pixel decoded as %d", m.At(0, 0))
	}
	if m.At(5, 5) == 0 {
		t.Fatal("painted pixel decoded as 0")
	}
}
