package data

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/pkg/mask"
	"gorm.io/gorm"
)

// MigrateRegionMasks 旧数据中的掩码以 data URL 文本保存，且没有记录尺寸
// 统一转为二值 PNG 并补齐尺寸，无法解码的记录保持原样
func MigrateRegionMasks(ctx context.Context, db *gorm.DB) (int, error) {
	if !db.Migrator().HasTable(new(region.Region)) {
		return 0, nil
	}
	var items []*region.Region
	if err := db.WithContext(ctx).Where("mask_width = ?", 0).Find(&items).Error; err != nil {
		return 0, err
	}

	var migrated int
	for _, r := range items {
		if !r.HasMask() {
			continue
		}
		m, err := decodeLegacy(r.Mask)
		if err != nil {
			slog.Warn("跳过无法解码的掩码", "region_id", r.ID, "err", err)
			continue
		}
		updates := map[string]any{"mask_width": m.W, "mask_height": m.H}
		if updates["segmented_mask"], err = mask.Encode(m); err != nil {
			return migrated, err
		}
		if bytes.HasPrefix(r.BrushMask, []byte("data:")) {
			if brush, err := decodeLegacy(r.BrushMask); err == nil {
				if updates["brush_mask"], err = mask.Encode(brush); err != nil {
					return migrated, err
				}
			}
		}
		if err := db.WithContext(ctx).Model(&region.Region{}).Where("id = ?", r.ID).Updates(updates).Error; err != nil {
			return migrated, err
		}
		migrated++
	}
	if migrated > 0 {
		slog.Info("区域掩码迁移完成", "total", len(items), "migrated", migrated)
	}
	return migrated, nil
}

// decodeLegacy 兼容 data URL 文本与原始图片字节，结果按 128 二值化
func decodeLegacy(b []byte) (*mask.Mask, error) {
	var (
		m   *mask.Mask
		err error
	)
	if bytes.HasPrefix(b, []byte("data:")) {
		m, err = mask.DecodeString(string(b))
	} else {
		m, err = mask.Decode(b)
	}
	if err != nil {
		return nil, err
	}
	return m.Threshold(mask.OnThreshold), nil
}
