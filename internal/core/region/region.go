package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/pkg/gormx"
	"github.com/gowvp/annotator/pkg/mask"
	"github.com/gowvp/annotator/pkg/overlay"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// RegionStorer Instantiation interface
type RegionStorer interface {
	Find(context.Context, *[]*Region, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Region, ...orm.QueryOption) error
	Add(context.Context, *Region) error
	Edit(context.Context, *Region, func(*Region) error, ...orm.QueryOption) error
	Del(context.Context, *Region, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

type defaultPager struct {
	limit int
}

func (p *defaultPager) Offset() int { return 0 }
func (p *defaultPager) Limit() int  { return p.limit }

const maxRegionsPerQuery = 10000

var errMissingMask = errors.New("mask is required")

// FindRegions 按创建顺序返回片段内的区域，即合成顺序
func (c Core) FindRegions(ctx context.Context, in *FindRegionInput) ([]*Region, int64, error) {
	query := orm.NewQuery(2).OrderBy("id ASC")
	query.Where("segment_id = ?", in.SegmentID)

	items := make([]*Region, 0, 8)
	total, err := c.store.Region().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// ListBySegments 批量查询多个片段下的全部区域
func (c Core) ListBySegments(ctx context.Context, segmentIDs []int64) ([]*Region, error) {
	items := make([]*Region, 0, 8)
	if len(segmentIDs) == 0 {
		return items, nil
	}
	query := orm.NewQuery(2).OrderBy("id ASC")
	query.Where("segment_id IN ?", segmentIDs)
	if _, err := c.store.Region().Find(ctx, &items, &defaultPager{limit: maxRegionsPerQuery}, query.Encode()...); err != nil {
		return nil, reason.ErrDB.Withf(`Find segment_ids[%v] err[%s]`, segmentIDs, err.Error())
	}
	return items, nil
}

// GetRegion Query a single object
func (c Core) GetRegion(ctx context.Context, id int64) (*Region, error) {
	var out Region
	if err := c.store.Region().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: region[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// CountRegions 片段内区域数量
func (c Core) CountRegions(ctx context.Context, segmentID int64) (int64, error) {
	n, err := c.store.Region().Count(ctx, orm.Where("segment_id = ?", segmentID))
	if err != nil {
		return 0, reason.ErrDB.Withf(`Count segment_id[%d] err[%s]`, segmentID, err.Error())
	}
	return n, nil
}

// segmentCount 用于接收 GROUP BY 查询结果
type segmentCount struct {
	SegmentID int64 `gorm:"column:segment_id"`
	Count     int64 `gorm:"column:cnt"`
}

// CountBySegments 批量统计每个片段的区域数量
func (c Core) CountBySegments(ctx context.Context, segmentIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(segmentIDs))
	if len(segmentIDs) == 0 {
		return result, nil
	}
	var counts []segmentCount
	err := c.store.Region().Session(ctx, func(db *gorm.DB) error {
		return db.Model(&Region{}).
			Select("segment_id, COUNT(*) as cnt").
			Where("segment_id IN ?", segmentIDs).
			Group("segment_id").
			Find(&counts).Error
	})
	if err != nil {
		return result, reason.ErrDB.Withf(`CountBySegments err[%s]`, err.Error())
	}
	for _, v := range counts {
		result[v.SegmentID] = v.Count
	}
	return result, nil
}

// AddRegion 新建区域，颜色未指定时取 palette[已有区域数 % 10]
func (c Core) AddRegion(ctx context.Context, in *AddRegionInput) (*Region, error) {
	if in.SegmentID <= 0 {
		return nil, reason.ErrBadRequest.SetMsg("segment_id is required")
	}
	out := Region{
		SegmentID: in.SegmentID,
		Label:     normalizeLabel(in.Label),
		FrameTime: in.FrameTime,
	}
	if err := setMasks(&out, in.Mask, in.BrushMask); err != nil {
		return nil, err
	}

	out.Color = in.Color
	if out.Color == "" {
		n, err := c.CountRegions(ctx, in.SegmentID)
		if err != nil {
			return nil, err
		}
		out.Color = PaletteColor(int(n))
	} else if _, err := overlay.ParseColor(out.Color); err != nil {
		return nil, reason.ErrBadRequest.SetMsg(err.Error())
	}
	out.CreatedAt, out.UpdatedAt = orm.Now(), orm.Now()

	if err := c.store.Region().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	slog.InfoContext(ctx, "region created", "id", out.ID, "segment_id", out.SegmentID, "color", out.Color)
	return &out, nil
}

// EditRegion 整体替换掩码，不与旧掩码合并
// 校验与编码全部在写库之前完成，失败时原数据保持不变
func (c Core) EditRegion(ctx context.Context, in *EditRegionInput, id int64) (*Region, error) {
	if in.Mask == nil {
		return nil, reason.ErrBadRequest.SetMsg(errMissingMask.Error())
	}
	if in.Color != "" {
		if _, err := overlay.ParseColor(in.Color); err != nil {
			return nil, reason.ErrBadRequest.SetMsg(err.Error())
		}
	}
	var staged Region
	if err := setMasks(&staged, in.Mask, in.BrushMask); err != nil {
		return nil, err
	}

	var out Region
	err := c.store.Region().Edit(ctx, &out, func(b *Region) error {
		if in.Label != "" {
			b.Label = normalizeLabel(in.Label)
		}
		if in.Color != "" {
			b.Color = in.Color
		}
		b.FrameTime = in.FrameTime
		b.Mask, b.MaskWidth, b.MaskHeight = staged.Mask, staged.MaskWidth, staged.MaskHeight
		b.BrushMask = staged.BrushMask
		b.UpdatedAt = orm.Now()
		return nil
	}, orm.Where("id=?", id))
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: region[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Edit id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// EditRegionProps 仅修改标签与颜色
func (c Core) EditRegionProps(ctx context.Context, in *EditRegionPropsInput, id int64) (*Region, error) {
	if in.Color != nil {
		if _, err := overlay.ParseColor(*in.Color); err != nil {
			return nil, reason.ErrBadRequest.SetMsg(err.Error())
		}
	}
	var out Region
	err := c.store.Region().Edit(ctx, &out, func(b *Region) error {
		if in.Label != nil {
			b.Label = normalizeLabel(*in.Label)
		}
		if in.Color != nil {
			b.Color = *in.Color
		}
		b.UpdatedAt = orm.Now()
		return nil
	}, orm.Where("id=?", id))
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: region[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Edit id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelRegion 删除区域及引用它的描述，同一事务中完成
func (c Core) DelRegion(ctx context.Context, id int64) (*Region, error) {
	if _, err := c.GetRegion(ctx, id); err != nil {
		return nil, err
	}
	var out Region
	err := c.store.Region().Session(ctx, func(tx *gorm.DB) error {
		txCtx := gormx.WithTx(ctx, tx)
		if err := c.cascade(txCtx, []int64{id}); err != nil {
			return err
		}
		return c.store.Region().Del(txCtx, &out, orm.Where("id=?", id))
	})
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: region[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelBySegments 删除片段下的全部区域，实现 segment.Cascader
// ctx 携带调用方事务时加入该事务
func (c Core) DelBySegments(ctx context.Context, segmentIDs []int64) error {
	if len(segmentIDs) == 0 {
		return nil
	}
	err := c.store.Region().Session(ctx, func(tx *gorm.DB) error {
		txCtx := gormx.WithTx(ctx, tx)
		regions, err := c.ListBySegments(txCtx, segmentIDs)
		if err != nil {
			return err
		}
		ids := make([]int64, len(regions))
		for i, r := range regions {
			ids[i] = r.ID
		}
		if err := c.cascade(txCtx, ids); err != nil {
			return err
		}
		return tx.Where("segment_id IN ?", segmentIDs).Delete(&Region{}).Error
	})
	if err != nil {
		return reason.ErrDB.Withf(`DelBySegments segment_ids[%v] err[%s]`, segmentIDs, err.Error())
	}
	return nil
}

func normalizeLabel(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return DefaultLabel
	}
	return s
}

func setMasks(r *Region, m, brush *mask.Mask) error {
	if m != nil {
		b, err := mask.Encode(m)
		if err != nil {
			return reason.ErrBadRequest.Withf("encode mask err[%s]", err.Error())
		}
		r.Mask, r.MaskWidth, r.MaskHeight = b, m.W, m.H
	}
	if brush != nil {
		b, err := mask.Encode(brush)
		if err != nil {
			return reason.ErrBadRequest.Withf("encode brush mask err[%s]", err.Error())
		}
		r.BrushMask = b
	}
	return nil
}
