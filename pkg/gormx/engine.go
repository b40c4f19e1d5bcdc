// Package gormx 基于 gorm 的通用增删改查，供各领域的 store 复用
package gormx

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

// Engine 单表操作
type Engine[T any] struct {
	db *gorm.DB
}

func New[T any](db *gorm.DB) Engine[T] {
	return Engine[T]{db: db}
}

// DB 原始连接
func (e Engine[T]) DB() *gorm.DB {
	return e.db
}

type txKey struct{}

// WithTx 之后凡是携带该 ctx 的 Engine 操作都在 tx 中执行
// 跨领域的级联删除借此与调用方处于同一事务，Transaction 嵌套时为 savepoint
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func (e Engine[T]) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return e.db.WithContext(ctx)
}

func apply(db *gorm.DB, opts []orm.QueryOption) *gorm.DB {
	for _, fn := range opts {
		db = fn(db)
	}
	return db
}

// Find 分页查询，返回总数
func (e Engine[T]) Find(ctx context.Context, bs *[]*T, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := apply(e.conn(ctx).Model(new(T)), opts).Session(&gorm.Session{})
	var total int64
	if err := db.Count(&total).Error; err != nil || total <= 0 {
		return total, err
	}
	return total, db.Limit(pager.Limit()).Offset(pager.Offset()).Find(bs).Error
}

// Get 查询单条，不存在时返回 gorm.ErrRecordNotFound
func (e Engine[T]) Get(ctx context.Context, b *T, opts ...orm.QueryOption) error {
	return apply(e.conn(ctx), opts).First(b).Error
}

func (e Engine[T]) Add(ctx context.Context, b *T) error {
	return e.conn(ctx).Create(b).Error
}

// Edit 在事务中查出记录，交由 changeFn 修改后整体保存
func (e Engine[T]) Edit(ctx context.Context, b *T, changeFn func(*T) error, opts ...orm.QueryOption) error {
	return e.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apply(tx, opts).First(b).Error; err != nil {
			return err
		}
		if err := changeFn(b); err != nil {
			return err
		}
		return tx.Save(b).Error
	})
}

// Del 删除单条，b 会被填充为删除前的数据
func (e Engine[T]) Del(ctx context.Context, b *T, opts ...orm.QueryOption) error {
	return e.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apply(tx, opts).First(b).Error; err != nil {
			return err
		}
		return tx.Delete(b).Error
	})
}

func (e Engine[T]) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	var total int64
	err := apply(e.conn(ctx).Model(new(T)), opts).Count(&total).Error
	return total, err
}

// Session 多个操作放在同一事务中执行
func (e Engine[T]) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return e.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
