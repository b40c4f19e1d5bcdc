package segmentdb

import (
	"github.com/gowvp/annotator/internal/core/segment"
	"github.com/gowvp/annotator/pkg/gormx"
	"gorm.io/gorm"
)

var _ segment.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Segment Get business instance
func (d DB) Segment() segment.SegmentStorer {
	return NewSegment(d.db)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(new(segment.Segment)); err != nil {
		panic(err)
	}
	return d
}

var _ segment.SegmentStorer = Segment{}

// Segment 片段表
type Segment struct {
	gormx.Engine[segment.Segment]
}

func NewSegment(db *gorm.DB) Segment {
	return Segment{Engine: gormx.New[segment.Segment](db)}
}
