package segment_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/internal/core/region/store/regiondb"
	"github.com/gowvp/annotator/internal/core/segment"
	"github.com/gowvp/annotator/internal/core/segment/store/segmentdb"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordCascade struct {
	ids []int64
}

func (r *recordCascade) DelBySegments(_ context.Context, ids []int64) error {
	r.ids = append(r.ids, ids...)
	return nil
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newCore(t *testing.T, opts ...segment.Option) segment.Core {
	t.Helper()
	return segment.NewCore(segmentdb.NewDB(openDB(t)).AutoMigrate(true), opts...)
}

// failSegmentWrites 开关打开后 segments 表的新建与删除都会失败
func failSegmentWrites(t *testing.T, db *gorm.DB) *bool {
	t.Helper()
	on := new(bool)
	fail := func(tx *gorm.DB) {
		if *on && tx.Statement.Table == "segments" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}
	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_segments_create", fail); err != nil {
		t.Fatal(err)
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("test:fail_segments_delete", fail); err != nil {
		t.Fatal(err)
	}
	return on
}

func TestAddSegmentNaming(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	for i := range 3 {
		s, err := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: float64(i), EndTime: float64(i + 1)})
		if err != nil {
			t.Fatal(err)
		}
		if want := segment.Palette[i]; s.Color != want {
			t.Fatalf("segment %d color %s, want %s", i, s.Color, want)
		}
		if s.Order != i {
			t.Fatalf("segment %d order %d", i, s.Order)
		}
	}
	items, total, err := core.FindSegments(ctx, &segment.FindSegmentInput{VideoID: "v1", PagerFilter: pager()})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || items[2].Name != "Segment 3" {
		t.Fatalf("total %d, last name %q", total, items[2].Name)
	}
}

func TestAddSegmentDegenerate(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	_, err := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: 3, EndTime: 3})
	if !errors.Is(err, bz.ErrPrecondition) {
		t.Fatalf("expect ErrPrecondition, got %v", err)
	}
	s, err := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: 3, EndTime: 3, Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.StartTime != 3 || s.EndTime != 3 {
		t.Fatalf("got %+v", s)
	}
}

func TestCommitPendingNormalizesRange(t *testing.T) {
	core := newCore(t)
	var tl segment.Timeline
	tl.MarkStart(5)
	if err := tl.MarkEnd(2); err != nil {
		t.Fatal(err)
	}
	s, err := core.CommitPending(context.Background(), "v1", &tl, &segment.CommitInput{Duration: 60})
	if err != nil {
		t.Fatal(err)
	}
	if s.StartTime != 2 || s.EndTime != 5 {
		t.Fatalf("expect [2,5], got [%v,%v]", s.StartTime, s.EndTime)
	}
	if s.Name != "Segment 1" {
		t.Fatalf("got name %q", s.Name)
	}
	if start, end := tl.Pending(); start != nil || end != nil {
		t.Fatal("pending range should be cleared after commit")
	}
}

func TestCommitPendingDefaultsToDuration(t *testing.T) {
	core := newCore(t)
	var tl segment.Timeline
	tl.MarkStart(12)
	s, err := core.CommitPending(context.Background(), "v1", &tl, &segment.CommitInput{Duration: 30})
	if err != nil {
		t.Fatal(err)
	}
	if s.EndTime != 30 {
		t.Fatalf("expect end 30, got %v", s.EndTime)
	}
}

func TestCommitPendingWithoutEndNeedsDuration(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	var tl segment.Timeline
	tl.MarkStart(12)
	for _, d := range []float64{0, -1, 8, math.NaN()} {
		if _, err := core.CommitPending(ctx, "v1", &tl, &segment.CommitInput{Duration: d}); !errors.Is(err, bz.ErrPrecondition) {
			t.Fatalf("duration %v: expect ErrPrecondition, got %v", d, err)
		}
	}
	if start, _ := tl.Pending(); start == nil || *start != 12 {
		t.Fatal("rejected commit should keep the pending start")
	}
	items, err := core.ListSegments(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected commit stored %d segments", len(items))
	}

	// 标记了终点时不需要时长
	_ = tl.MarkEnd(20)
	s, err := core.CommitPending(ctx, "v1", &tl, &segment.CommitInput{})
	if err != nil {
		t.Fatal(err)
	}
	if s.StartTime != 12 || s.EndTime != 20 {
		t.Fatalf("expect [12,20], got [%v,%v]", s.StartTime, s.EndTime)
	}
}

func TestCommitPendingKeepsStateOnFailure(t *testing.T) {
	core := newCore(t)
	var tl segment.Timeline
	tl.MarkStart(4)
	_ = tl.MarkEnd(4)
	if _, err := core.CommitPending(context.Background(), "v1", &tl, &segment.CommitInput{Duration: 30}); !errors.Is(err, bz.ErrPrecondition) {
		t.Fatalf("expect ErrPrecondition, got %v", err)
	}
	if start, _ := tl.Pending(); start == nil {
		t.Fatal("failed commit should keep the pending range")
	}
}

func TestMarkEndWithoutStart(t *testing.T) {
	var tl segment.Timeline
	if err := tl.MarkEnd(3); !errors.Is(err, bz.ErrPrecondition) {
		t.Fatalf("expect ErrPrecondition, got %v", err)
	}
	tl.MarkStart(1)
	_ = tl.MarkEnd(3)
	tl.MarkStart(2)
	if _, end := tl.Pending(); end != nil {
		t.Fatal("mark start should clear the end")
	}
}

func TestAutoSplitReplaces(t *testing.T) {
	cascade := &recordCascade{}
	core := newCore(t, segment.WithCascade(cascade))
	ctx := context.Background()
	old, err := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: 0, EndTime: 4})
	if err != nil {
		t.Fatal(err)
	}

	items, err := core.AutoSplit(ctx, "v1", &segment.AutoSplitInput{Duration: 25})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expect 3 segments, got %d", len(items))
	}
	for i, s := range items {
		if want := "Segment " + string(rune('1'+i)); s.Name != want {
			t.Fatalf("got name %q want %q", s.Name, want)
		}
		if math.Abs(s.EndTime-s.StartTime-25.0/3) > 1e-9 {
			t.Fatalf("segment %d width %v", i, s.EndTime-s.StartTime)
		}
		if s.Order != i {
			t.Fatalf("segment %d order %d", i, s.Order)
		}
	}
	if len(cascade.ids) != 1 || cascade.ids[0] != old.ID {
		t.Fatalf("cascade got %v", cascade.ids)
	}

	all, total, err := core.FindSegments(ctx, &segment.FindSegmentInput{VideoID: "v1", PagerFilter: pager()})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || all[0].ID == old.ID {
		t.Fatal("auto split should replace existing segments")
	}
}

func TestAutoSplitMinimumTwo(t *testing.T) {
	got := segment.SplitEvenly(4)
	if len(got) != 2 || got[1].End != 4 {
		t.Fatalf("got %+v", got)
	}
	if segment.SplitEvenly(0) != nil {
		t.Fatal("zero duration should not split")
	}
}

func TestDelSegment(t *testing.T) {
	cascade := &recordCascade{}
	core := newCore(t, segment.WithCascade(cascade))
	ctx := context.Background()
	if _, err := core.DelSegment(ctx, 99); !errors.Is(err, bz.ErrNotFound) {
		t.Fatalf("expect ErrNotFound, got %v", err)
	}
	if len(cascade.ids) != 0 {
		t.Fatal("missing segment should not cascade")
	}
	s, _ := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: 1, EndTime: 2})
	if _, err := core.DelSegment(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if len(cascade.ids) != 1 || cascade.ids[0] != s.ID {
		t.Fatalf("cascade got %v", cascade.ids)
	}
	if _, err := core.GetSegment(ctx, s.ID); !errors.Is(err, bz.ErrNotFound) {
		t.Fatalf("expect ErrNotFound after delete, got %v", err)
	}
}

func TestEditSegment(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	s, _ := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: 1, EndTime: 2})
	end := 0.5
	name := "intro"
	out, err := core.EditSegment(ctx, &segment.EditSegmentInput{EndTime: &end, Name: &name}, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.StartTime != 0.5 || out.EndTime != 1 || out.Name != "intro" {
		t.Fatalf("got %+v", out)
	}
	if _, err := core.EditSegment(ctx, &segment.EditSegmentInput{Name: &name}, 404); !errors.Is(err, bz.ErrNotFound) {
		t.Fatalf("expect ErrNotFound, got %v", err)
	}
}

func TestFailedReplaceKeepsRegions(t *testing.T) {
	db := openDB(t)
	regions := region.NewCore(regiondb.NewDB(db).AutoMigrate(true))
	core := segment.NewCore(segmentdb.NewDB(db).AutoMigrate(true), segment.WithCascade(regions))
	failing := failSegmentWrites(t, db)
	ctx := context.Background()

	s, err := core.AddSegment(ctx, &segment.AddSegmentInput{VideoID: "v1", StartTime: 0, EndTime: 4})
	if err != nil {
		t.Fatal(err)
	}
	r, err := regions.AddRegion(ctx, &region.AddRegionInput{SegmentID: s.ID, Label: "dog"})
	if err != nil {
		t.Fatal(err)
	}

	*failing = true
	if _, err := core.AutoSplit(ctx, "v1", &segment.AutoSplitInput{Duration: 25}); err == nil {
		t.Fatal("expect auto split to fail")
	}
	if _, err := core.DelSegment(ctx, s.ID); err == nil {
		t.Fatal("expect delete to fail")
	}
	if _, err := regions.GetRegion(ctx, r.ID); err != nil {
		t.Fatalf("region lost after failed write: %v", err)
	}
	items, err := core.ListSegments(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != s.ID {
		t.Fatalf("segments changed after failed write: %+v", items)
	}

	*failing = false
	if _, err := core.DelSegment(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := regions.GetRegion(ctx, r.ID); !errors.Is(err, bz.ErrNotFound) {
		t.Fatalf("expect region removed with its segment, got %v", err)
	}
}
