package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailedError(t *testing.T) {
	err := fmt.Errorf("write: %w", NewDetailedError(ErrParse, `{"id": oops}`))

	assert.ErrorIs(t, err, ErrParse)
	details, ok := ErrorDetails(err)
	assert.True(t, ok)
	assert.Equal(t, `{"id": oops}`, details)

	_, ok = ErrorDetails(errors.New("plain"))
	assert.False(t, ok)
}
