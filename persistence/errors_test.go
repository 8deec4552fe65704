package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/wfunc/guessduel/apperr"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	deadlock := &pq.Error{Code: "40P01", Message: "deadlock detected"}
	err := translateError(fmt.Errorf("debit: %w", deadlock))
	assert.True(t, IsConflict(err))
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	unique := &pq.Error{Code: "23505", Message: "duplicate key"}
	err = translateError(unique)
	assert.False(t, IsConflict(err))
	assert.Same(t, unique, err)

	plain := errors.New("boom")
	assert.Same(t, plain, translateError(plain))
}
