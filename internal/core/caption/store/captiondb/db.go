package captiondb

import (
	"github.com/gowvp/annotator/internal/core/caption"
	"github.com/gowvp/annotator/pkg/gormx"
	"gorm.io/gorm"
)

var _ caption.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Caption Get business instance
func (d DB) Caption() caption.CaptionStorer {
	return Caption{Engine: gormx.New[caption.Caption](d.db)}
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(new(caption.Caption)); err != nil {
		panic(err)
	}
	return d
}

var _ caption.CaptionStorer = Caption{}

type Caption struct {
	gormx.Engine[caption.Caption]
}
