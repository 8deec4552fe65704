// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/guessduel/models"
)

// PoolConfig tunes the underlying sql.DB.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
	SlowThreshold   time.Duration
}

// PostgresConfig locates the PostgreSQL server.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// GormDB is the GORM-backed Database.
type GormDB struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens PostgreSQL through lib/pq and hands the pool to GORM.
func NewGormPostgreSQL(pg PostgresConfig, pool PoolConfig) (*GormDB, error) {
	sslMode := pg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, sslMode)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: newGormLogger(pool),
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return setup(db, pool)
}

func newGormLogger(pool PoolConfig) logger.Interface {
	slow := pool.SlowThreshold
	if slow == 0 {
		slow = time.Second
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  parseLogLevel(pool.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// setup applies pool settings and migrates the schema.
func setup(db *gorm.DB, pool PoolConfig) (*GormDB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// DB returns a context-bound session.
func (p *GormDB) DB(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

// Transaction runs fn atomically and classifies store failures.
func (p *GormDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return translateError(p.db.WithContext(ctx).Transaction(fn))
}

// Close 关闭数据库连接
func (p *GormDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
