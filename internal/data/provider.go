package data

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/wire"
	"github.com/gowvp/annotator/internal/conf"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/system"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(SetupDB)

// sqlite 写锁等待时间，毫秒
const sqliteBusyTimeout = "5000"

// SetupDB 初始化数据存储
// sqlite 固定单连接：级联删除依赖同一连接上的嵌套事务（SAVEPOINT），
// 多连接时后台迁移与请求写入会互相等待写锁
func SetupDB(c *conf.Bootstrap) (*gorm.DB, error) {
	cfg := c.Data.Database
	dial, isSQLite := getDialector(cfg.Dsn)
	if isSQLite {
		cfg.MaxIdleConns = 1
		cfg.MaxOpenConns = 1
	}
	slog.Info("database", "dialect", dial.Name(), "max_open_conns", cfg.MaxOpenConns)
	return orm.New(dial, orm.Config{
		MaxIdleConns:    int(cfg.MaxIdleConns),
		MaxOpenConns:    int(cfg.MaxOpenConns),
		ConnMaxLifetime: cfg.ConnMaxLifetime.Duration(),
		SlowThreshold:   cfg.SlowThreshold.Duration(),
	})
}

// getDialector 按连接串前缀选择驱动，返回 dial 和是否 sqlite
func getDialector(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "postgres"):
		return postgres.New(postgres.Config{
			DriverName: "pgx",
			DSN:        dsn,
		}), false
	case strings.HasPrefix(dsn, "mysql://"):
		return mysql.Open(mysqlDSN(dsn)), false
	default:
		return sqlite.Open(sqliteDSN(dsn)), true
	}
}

// mysqlDSN 驱动不识别 mysql:// 前缀；区域与片段的时间字段需要 parseTime
func mysqlDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "mysql://")
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// sqliteDSN 相对路径以工作目录为准，未指定参数时开启 WAL 与写锁等待
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	if !filepath.IsAbs(dsn) {
		dsn = filepath.Join(system.Getwd(), dsn)
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=busy_timeout(" + sqliteBusyTimeout + ")&_pragma=journal_mode(WAL)"
}
