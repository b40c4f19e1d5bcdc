package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gowvp/annotator/internal/core/bz"
	"github.com/gowvp/annotator/pkg/dam"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// CaptionStorer Instantiation interface
type CaptionStorer interface {
	Find(context.Context, *[]*Caption, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Caption, ...orm.QueryOption) error
	Add(context.Context, *Caption) error
	Edit(context.Context, *Caption, func(*Caption) error, ...orm.QueryOption) error
	Del(context.Context, *Caption, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

type defaultPager struct {
	limit int
}

func (p *defaultPager) Offset() int { return 0 }
func (p *defaultPager) Limit() int  { return p.limit }

const maxCaptionsPerQuery = 10000

// FindCaptions 片段下的全部描述
func (c Core) FindCaptions(ctx context.Context, segmentIDs ...int64) ([]*Caption, error) {
	items := make([]*Caption, 0, 8)
	if len(segmentIDs) == 0 {
		return items, nil
	}
	query := orm.NewQuery(2).OrderBy("id ASC")
	query.Where("segment_id IN ?", segmentIDs)
	if _, err := c.store.Caption().Find(ctx, &items, &defaultPager{limit: maxCaptionsPerQuery}, query.Encode()...); err != nil {
		return nil, reason.ErrDB.Withf(`Find segment_ids[%v] err[%s]`, segmentIDs, err.Error())
	}
	return items, nil
}

// GetCaption Query a single object
func (c Core) GetCaption(ctx context.Context, id int64) (*Caption, error) {
	return c.getBy(ctx, fmt.Sprintf("caption[%d]", id), orm.Where("id=?", id))
}

// GetSegmentCaption 片段级描述
func (c Core) GetSegmentCaption(ctx context.Context, segmentID int64) (*Caption, error) {
	return c.getBy(ctx, fmt.Sprintf("segment caption[%d]", segmentID),
		orm.Where("segment_id = ? AND region_id IS NULL", segmentID))
}

// GetRegionCaption 区域描述
func (c Core) GetRegionCaption(ctx context.Context, regionID int64) (*Caption, error) {
	return c.getBy(ctx, fmt.Sprintf("region caption[%d]", regionID), orm.Where("region_id = ?", regionID))
}

func (c Core) getBy(ctx context.Context, name string, opts ...orm.QueryOption) (*Caption, error) {
	var out Caption
	if err := c.store.Caption().Get(ctx, &out, opts...); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: %s", bz.ErrNotFound, name)
		}
		return nil, reason.ErrDB.Withf(`Get %s err[%s]`, name, err.Error())
	}
	return &out, nil
}

// SaveCaption 不存在时新建，存在时仅覆盖传入的字段
func (c Core) SaveCaption(ctx context.Context, in *SaveCaptionInput) (*Caption, bool, error) {
	if in.SegmentID <= 0 {
		return nil, false, reason.ErrBadRequest.SetMsg("segment_id is required")
	}
	var (
		existing *Caption
		err      error
	)
	if in.RegionID != nil {
		existing, err = c.getBy(ctx, "region caption", orm.Where("region_id = ? AND segment_id = ?", *in.RegionID, in.SegmentID))
	} else {
		existing, err = c.GetSegmentCaption(ctx, in.SegmentID)
	}
	if err != nil && !errors.Is(err, bz.ErrNotFound) {
		return nil, false, err
	}
	if existing != nil {
		out, err := c.EditCaption(ctx, &in.EditCaptionInput, existing.ID)
		return out, false, err
	}

	var out Caption
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	in.apply(&out)
	out.CreatedAt, out.UpdatedAt = orm.Now(), orm.Now()
	if err := c.store.Caption().Add(ctx, &out); err != nil {
		return nil, false, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, true, nil
}

// EditCaption 仅修改传入的字段
func (c Core) EditCaption(ctx context.Context, in *EditCaptionInput, id int64) (*Caption, error) {
	var out Caption
	err := c.store.Caption().Edit(ctx, &out, func(b *Caption) error {
		in.apply(b)
		b.UpdatedAt = orm.Now()
		return nil
	}, orm.Where("id=?", id))
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: caption[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Edit id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelCaption 删除单条描述
func (c Core) DelCaption(ctx context.Context, id int64) (*Caption, error) {
	var out Caption
	if err := c.store.Caption().Del(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: caption[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelByRegions 实现 region.Cascader
func (c Core) DelByRegions(ctx context.Context, regionIDs []int64) error {
	return c.delWhere(ctx, "region_id IN ?", regionIDs)
}

// DelBySegments 实现 segment.Cascader，包括片段级描述
func (c Core) DelBySegments(ctx context.Context, segmentIDs []int64) error {
	return c.delWhere(ctx, "segment_id IN ?", segmentIDs)
}

func (c Core) delWhere(ctx context.Context, cond string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := c.store.Caption().Session(ctx, func(tx *gorm.DB) error {
		return tx.Where(cond, ids).Delete(&Caption{}).Error
	})
	if err != nil {
		return reason.ErrDB.Withf(`Del %s %v err[%s]`, cond, ids, err.Error())
	}
	return nil
}

// GenerateCaption 调用描述模型生成单类描述
// visual 以区域掩码作为 alpha，contextual 整帧可见
func (c Core) GenerateCaption(ctx context.Context, in *GenerateInput) (string, error) {
	if c.describer == nil {
		return "", fmt.Errorf("%w: caption service not configured", bz.ErrExternalService)
	}
	frames := PadOrSample(in.Frames, c.frames.Count)
	if len(frames) == 0 {
		return "", reason.ErrBadRequest.SetMsg("frames is required")
	}

	var prompt string
	switch in.Kind {
	case KindVisual:
		if in.Mask.Empty() {
			return "", reason.ErrBadRequest.SetMsg("mask is required for visual caption")
		}
		prompt = dam.VisualPrompt
	case KindContextual:
		prompt = dam.ContextualPrompt
	default:
		return "", reason.ErrBadRequest.Withf("unknown caption type %q", in.Kind)
	}

	images := make([]string, len(frames))
	for i, f := range frames {
		m := in.Mask
		if in.Kind == KindContextual {
			m = nil
		}
		img, err := RGBA(f, m, c.frames.MaxSide)
		if err != nil {
			return "", reason.ErrBadRequest.Withf("frames[%d]: %s", i, err.Error())
		}
		images[i] = img
	}

	text, err := c.describer.Describe(ctx, images, prompt)
	if err != nil {
		slog.WarnContext(ctx, "describe failed", "kind", in.Kind, "err", err)
		return "", fmt.Errorf("%w: %s", bz.ErrExternalService, err)
	}
	return text, nil
}

// GenerateBatch 同时生成 visual 与 contextual，单项失败记入 Warnings
func (c Core) GenerateBatch(ctx context.Context, in *GenerateInput) (*GenerateOutput, error) {
	if len(in.Frames) == 0 || in.Mask.Empty() {
		return nil, reason.ErrBadRequest.SetMsg("frames and mask are required")
	}
	var out GenerateOutput
	v, err := c.GenerateCaption(ctx, &GenerateInput{Frames: in.Frames, Mask: in.Mask, Kind: KindVisual})
	if err != nil {
		out.Warnings = append(out.Warnings, "Visual caption error: "+err.Error())
	}
	out.VisualCaption = v

	x, err := c.GenerateCaption(ctx, &GenerateInput{Frames: in.Frames, Kind: KindContextual})
	if err != nil {
		out.Warnings = append(out.Warnings, "Contextual caption error: "+err.Error())
	}
	out.ContextualCaption = x
	return &out, nil
}

// TranslateCaption 把一种语言的字段翻译到另一种语言并保存
func (c Core) TranslateCaption(ctx context.Context, id int64, in *TranslateInput) (*Caption, error) {
	if c.translator == nil {
		return nil, fmt.Errorf("%w: translator not configured", bz.ErrExternalService)
	}
	from, to, dir := LangEN, LangVI, dam.EnToVi
	if in.From == LangVI {
		from, to, dir = LangVI, LangEN, dam.ViToEn
	}
	kinds := in.Kinds
	if len(kinds) == 0 {
		kinds = Kinds[:]
	}

	cur, err := c.GetCaption(ctx, id)
	if err != nil {
		return nil, err
	}
	// 先完成全部翻译，失败时不写库
	result := make(map[Kind]string, len(kinds))
	for _, k := range kinds {
		if cur.field(k, from) == nil {
			return nil, reason.ErrBadRequest.Withf("unknown caption type %q", k)
		}
		src := cur.Text(k, from)
		if src == "" {
			continue
		}
		s, err := c.translator.Translate(ctx, src, dir)
		if err != nil {
			return nil, fmt.Errorf("%w: translate %s: %s", bz.ErrExternalService, k, err)
		}
		result[k] = s
	}

	return c.setText(ctx, id, result, to)
}

// CombineCaption 合并 visual/contextual 与 knowledge 为 combined
func (c Core) CombineCaption(ctx context.Context, id int64, in *CombineInput) (*Caption, error) {
	if c.translator == nil {
		return nil, fmt.Errorf("%w: translator not configured", bz.ErrExternalService)
	}
	lang := in.Lang
	if lang != LangVI {
		lang = LangEN
	}
	cur, err := c.GetCaption(ctx, id)
	if err != nil {
		return nil, err
	}
	parts := []string{cur.Text(KindVisual, lang), cur.Text(KindContextual, lang), cur.Text(KindKnowledge, lang)}
	combined, err := c.translator.Combine(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("%w: combine: %s", bz.ErrExternalService, err)
	}
	if combined == "" {
		return nil, fmt.Errorf("%w: nothing to combine", bz.ErrPrecondition)
	}
	return c.setText(ctx, id, map[Kind]string{KindCombined: combined}, lang)
}

// setText 在事务中写入指定语言的多个字段
func (c Core) setText(ctx context.Context, id int64, texts map[Kind]string, lang Lang) (*Caption, error) {
	var out Caption
	err := c.store.Caption().Edit(ctx, &out, func(b *Caption) error {
		for k, s := range texts {
			b.SetText(k, lang, s)
		}
		b.UpdatedAt = orm.Now()
		return nil
	}, orm.Where("id=?", id))
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, fmt.Errorf("%w: caption[%d]", bz.ErrNotFound, id)
		}
		return nil, reason.ErrDB.Withf(`Edit id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}
