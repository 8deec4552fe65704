// persistence/interface.go
package persistence

import (
	"context"

	"gorm.io/gorm"
)

// Database is the transactional store every mutating component goes through.
type Database interface {
	// DB returns a session bound to ctx for reads outside a transaction.
	DB(ctx context.Context) *gorm.DB
	// Transaction runs fn in a single atomic unit. Any error returned by fn
	// rolls back every write fn made. Store-level lock failures come back as
	// apperr.ErrConflict.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	Close() error
}
