package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntRange(t *testing.T) {
	assert.NoError(t, IntRange("load", 1, 1, 10))
	assert.NoError(t, IntRange("load", 10, 1, 10))

	err := IntRange("load", 11, 1, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "load", verr.Field)
	assert.Equal(t, "invalid load (11): must be in [1, 10]", err.Error())
}

func TestFloatRange(t *testing.T) {
	assert.NoError(t, FloatRange("frame", 16.67, 8.33, 33.33))
	assert.Error(t, FloatRange("frame", 40, 8.33, 33.33))
}

func TestRequiredAndFirst(t *testing.T) {
	assert.NoError(t, First(nil, Required("id", "x")))
	err := First(nil, Required("id", ""), IntRange("p", 0, 1, 10))
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "id", verr.Field)
}
