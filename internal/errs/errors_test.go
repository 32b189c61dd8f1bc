package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")
	err := fmt.Errorf("inspect database 1: %w", errs.Wrap(errs.ErrKindConnectionFailed, "unable to reach database", cause))

	assert.True(t, errs.IsConnectionFailed(err))
	assert.False(t, errs.IsConfiguration(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "inspect database 1: unable to reach database: "+cause.Error(), err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, errs.ErrKindUnknown, errs.KindOf(errors.New("boom")))
	assert.Equal(t, errs.ErrKindUnknown, errs.KindOf(nil))
}

func TestPredicates(t *testing.T) {
	assert.True(t, errs.IsEmptySchema(errs.New(errs.ErrKindEmptySchema, "no tables")))
	assert.True(t, errs.IsUnknownDirection(errs.Newf(errs.ErrKindUnknownDirection, "unknown direction %q", "sideways")))
	assert.True(t, errs.IsNotFound(errs.New(errs.ErrKindNotFound, "profile missing")))
	assert.True(t, errs.IsInvalidInput(errs.New(errs.ErrKindInvalidInput, "bad body")))
	assert.True(t, errs.IsQueryFailed(errs.New(errs.ErrKindQueryFailed, "syntax error")))
	assert.Equal(t, "unknown_direction", errs.ErrKindUnknownDirection.String())
}
