package regiondb

import (
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/pkg/gormx"
	"gorm.io/gorm"
)

var _ region.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Region Get business instance
func (d DB) Region() region.RegionStorer {
	return Region{Engine: gormx.New[region.Region](d.db)}
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(new(region.Region)); err != nil {
		panic(err)
	}
	return d
}

var _ region.RegionStorer = Region{}

type Region struct {
	gormx.Engine[region.Region]
}
