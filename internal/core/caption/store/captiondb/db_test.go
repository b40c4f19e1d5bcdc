package captiondb

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gowvp/annotator/internal/core/caption"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	return db, mock, err
}

func TestSegmentCaptionGet(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewDB(db).Caption()

	mock.ExpectQuery(`SELECT \* FROM "captions" WHERE segment_id = \$1 AND region_id IS NULL (.+) LIMIT \$2`).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "segment_id", "region_id", "contextual_caption"}).
			AddRow(1, 3, nil, "a busy street"))

	var out caption.Caption
	if err := store.Get(context.Background(), &out, orm.Where("segment_id = ? AND region_id IS NULL", 3)); err != nil {
		t.Fatal(err)
	}
	if out.RegionID != nil || out.ContextualCaption != "a busy street" {
		t.Fatalf("unexpected row %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}
