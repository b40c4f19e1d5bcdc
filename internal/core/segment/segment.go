package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/pkg/gormx"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// SegmentStorer Instantiation interface
type SegmentStorer interface {
	Find(context.Context, *[]*Segment, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Segment, ...orm.QueryOption) error
	Add(context.Context, *Segment) error
	Edit(context.Context, *Segment, func(*Segment) error, ...orm.QueryOption) error
	Del(context.Context, *Segment, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

// defaultPager 内部使用的分页器，取视频下全部片段
type defaultPager struct {
	limit int
}

func (p *defaultPager) Offset() int { return 0 }
func (p *defaultPager) Limit() int  { return p.limit }

const maxSegmentsPerVideo = 10000

var errNegativeStart = errors.New("start_time must not be negative")

// FindSegments 按 order 升序返回视频下的片段
func (c Core) FindSegments(ctx context.Context, in *FindSegmentInput) ([]*Segment, int64, error) {
	if in.VideoID == "" {
		return nil, 0, reason.ErrBadRequest.SetMsg("video_id is required")
	}
	query := orm.NewQuery(2).OrderBy("sort ASC, id ASC")
	query.Where("video_id = ?", in.VideoID)

	items := make([]*Segment, 0, 8)
	total, err := c.store.Segment().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// ListSegments 视频下全部片段，按 order 升序
func (c Core) ListSegments(ctx context.Context, videoID string) ([]*Segment, error) {
	query := orm.NewQuery(2).OrderBy("sort ASC, id ASC")
	query.Where("video_id = ?", videoID)
	items := make([]*Segment, 0, 8)
	if _, err := c.store.Segment().Find(ctx, &items, &defaultPager{limit: maxSegmentsPerVideo}, query.Encode()...); err != nil {
		return nil, reason.ErrDB.Withf(`Find video_id[%s] err[%s]`, videoID, err.Error())
	}
	return items, nil
}

// GetSegment Query a single object
func (c Core) GetSegment(ctx context.Context, id int64) (*Segment, error) {
	var out Segment
	if err := c.store.Segment().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: segment[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// AddSegment 追加片段，名称按位置命名为 "Segment N"
func (c Core) AddSegment(ctx context.Context, in *AddSegmentInput) (*Segment, error) {
	if in.VideoID == "" {
		return nil, reason.ErrBadRequest.SetMsg("video_id is required")
	}
	r := NewRange(in.StartTime, in.EndTime)
	if r.Start < 0 {
		return nil, reason.ErrBadRequest.Withf("start_time[%v] must not be negative", r.Start)
	}
	if r.Degenerate() && !in.Force {
		return nil, fmt.Errorf("%w: segment start equals end (%v)", bz.ErrPrecondition, r.Start)
	}

	existing, err := c.ListSegments(ctx, in.VideoID)
	if err != nil {
		return nil, err
	}

	var out Segment
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	out.StartTime, out.EndTime = r.Start, r.End
	out.Order = nextOrder(existing)
	if out.Name == "" {
		out.Name = positionalName(len(existing))
	}
	if out.Color == "" {
		out.Color = Palette[len(existing)%len(Palette)]
	}
	out.CreatedAt, out.UpdatedAt = orm.Now(), orm.Now()

	if err := c.store.Segment().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}

// CommitPending 提交时间轴上标记的区间，成功后清空标记
func (c Core) CommitPending(ctx context.Context, videoID string, tl *Timeline, in *CommitInput) (*Segment, error) {
	r, err := tl.Range(in.Duration)
	if err != nil {
		return nil, err
	}
	out, err := c.AddSegment(ctx, &AddSegmentInput{
		VideoID:   videoID,
		Name:      in.Name,
		StartTime: r.Start,
		EndTime:   r.End,
		Force:     in.Force,
	})
	if err != nil {
		return nil, err
	}
	tl.Clear()
	return out, nil
}

// EditSegment 仅修改传入的字段，修改后仍保证 start <= end
func (c Core) EditSegment(ctx context.Context, in *EditSegmentInput, id int64) (*Segment, error) {
	var out Segment
	err := c.store.Segment().Edit(ctx, &out, func(b *Segment) error {
		if in.Name != nil {
			b.Name = *in.Name
		}
		if in.StartTime != nil {
			b.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			b.EndTime = *in.EndTime
		}
		if in.Order != nil {
			b.Order = *in.Order
		}
		if in.Color != nil {
			b.Color = *in.Color
		}
		r := NewRange(b.StartTime, b.EndTime)
		if r.Start < 0 {
			return errNegativeStart
		}
		b.StartTime, b.EndTime = r.Start, r.End
		b.UpdatedAt = orm.Now()
		return nil
	}, orm.Where("id=?", id))
	if err != nil {
		if errors.Is(err, errNegativeStart) {
			return nil, reason.ErrBadRequest.SetMsg(err.Error())
		}
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: segment[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Edit id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelSegment 删除片段及其区域、描述，全部在同一事务中完成
func (c Core) DelSegment(ctx context.Context, id int64) (*Segment, error) {
	if _, err := c.GetSegment(ctx, id); err != nil {
		return nil, err
	}
	var out Segment
	err := c.store.Segment().Session(ctx, func(tx *gorm.DB) error {
		txCtx := gormx.WithTx(ctx, tx)
		if err := c.cascade(txCtx, []int64{id}); err != nil {
			return err
		}
		return c.store.Segment().Del(txCtx, &out, orm.Where("id=?", id))
	})
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: segment[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// BatchSegments 批量创建；Replace 时先删除视频下已有片段及下游数据
func (c Core) BatchSegments(ctx context.Context, videoID string, in *BatchSegmentInput) ([]*Segment, error) {
	if videoID == "" {
		return nil, reason.ErrBadRequest.SetMsg("video_id is required")
	}
	ranges := make([]Range, len(in.Items))
	for i, item := range in.Items {
		r := NewRange(item.StartTime, item.EndTime)
		if r.Start < 0 {
			return nil, reason.ErrBadRequest.Withf("segments[%d] start_time must not be negative", i)
		}
		if r.Degenerate() {
			return nil, fmt.Errorf("%w: segments[%d] start equals end", bz.ErrPrecondition, i)
		}
		ranges[i] = r
	}

	existing, err := c.ListSegments(ctx, videoID)
	if err != nil {
		return nil, err
	}

	offset, order := len(existing), nextOrder(existing)
	if in.Replace {
		offset, order = 0, 0
	}

	now := orm.Now()
	out := make([]*Segment, len(in.Items))
	for i, item := range in.Items {
		name := item.Name
		if name == "" {
			name = positionalName(offset + i)
		}
		out[i] = &Segment{
			VideoID:   videoID,
			Name:      name,
			StartTime: ranges[i].Start,
			EndTime:   ranges[i].End,
			Order:     order + i,
			Color:     Palette[(offset+i)%len(Palette)],
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	// 级联删除与新建在同一事务中，任何一步失败都保留原有片段、区域与描述
	fns := make([]func(*gorm.DB) error, 0, 2)
	if in.Replace {
		ids := make([]int64, len(existing))
		for i, s := range existing {
			ids[i] = s.ID
		}
		fns = append(fns, func(tx *gorm.DB) error {
			if err := c.cascade(gormx.WithTx(ctx, tx), ids); err != nil {
				return err
			}
			return tx.Where("video_id = ?", videoID).Delete(&Segment{}).Error
		})
	}
	if len(out) > 0 {
		fns = append(fns, func(tx *gorm.DB) error {
			return tx.Create(&out).Error
		})
	}
	if err := c.store.Segment().Session(ctx, fns...); err != nil {
		return nil, reason.ErrDB.Withf(`Batch video_id[%s] err[%s]`, videoID, err.Error())
	}
	slog.InfoContext(ctx, "batch segments", "video_id", videoID, "count", len(out), "replace", in.Replace)
	return out, nil
}

// AutoSplit 按时长均分，替换视频下全部片段
func (c Core) AutoSplit(ctx context.Context, videoID string, in *AutoSplitInput) ([]*Segment, error) {
	ranges := SplitEvenly(in.Duration)
	if len(ranges) == 0 {
		return nil, reason.ErrBadRequest.Withf("duration[%v] must be positive", in.Duration)
	}
	items := make([]BatchSegmentItem, len(ranges))
	for i, r := range ranges {
		items[i] = BatchSegmentItem{StartTime: r.Start, EndTime: r.End}
	}
	return c.BatchSegments(ctx, videoID, &BatchSegmentInput{Items: items, Replace: true})
}

func positionalName(idx int) string {
	return fmt.Sprintf("Segment %d", idx+1)
}

func nextOrder(items []*Segment) int {
	next := 0
	for _, s := range items {
		if s.Order >= next {
			next = s.Order + 1
		}
	}
	return next
}
