package persistence

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewGormSQLite opens a SQLite database for local development and tests.
//
// SQLite has no row locks; GORM drops FOR UPDATE clauses for it. The pool is
// pinned to a single connection so transactions run one at a time, which
// gives the same serialisation the row locks provide on PostgreSQL.
func NewGormSQLite(dsn string, pool PoolConfig) (*GormDB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(pool),
	})
	if err != nil {
		return nil, err
	}

	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	pool.ConnMaxLifetime = 0
	return setup(db, pool)
}
