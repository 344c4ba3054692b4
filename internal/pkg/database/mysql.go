// internal/pkg/database/mysql.go
package database

import (
	"context"
	"database/sql"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options 是 MySQL 连接池配置。
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

// NormalizeDSN 校验 DSN，并强制开启 parseTime，保证 DATETIME 能扫描到 time.Time。
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql dsn")
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// Open 打开 GORM 连接。慢查询通过 zerolog 输出。
func Open(opts Options) (*gorm.DB, error) {
	dsn, err := NormalizeDSN(opts.DSN)
	if err != nil {
		return nil, err
	}
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = 200 * time.Millisecond
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig(opts.SlowThreshold))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB")
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return db, nil
}

// OpenConn 在已有的 *sql.DB 上创建 GORM 连接（测试时传入 sqlmock）。
func OpenConn(conn *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	}), gormConfig(200*time.Millisecond))
	if err != nil {
		return nil, errors.Wrap(err, "failed to wrap sql.DB")
	}
	return db, nil
}

func gormConfig(slow time.Duration) *gorm.Config {
	return &gorm.Config{
		// 单条语句不需要额外的事务包裹
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(&zlog.Logger, gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Migrate 自动建表，由 marketctl migrate 调用。
func Migrate(ctx context.Context, db *gorm.DB, models ...any) error {
	if err := db.WithContext(ctx).Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4").AutoMigrate(models...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// IsDuplicateKey 判断错误是否为 MySQL 唯一键冲突 (1062)。
func IsDuplicateKey(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
