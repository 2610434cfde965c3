package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, TypeTranscriptionConnection, "dial provider")

	assert.True(t, IsType(err, TypeTranscriptionConnection))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial provider")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsTypeWalksWrappedChain(t *testing.T) {
	inner := New(TypeExtraction, "no formats")
	outer := fmt.Errorf("starting job: %w", inner)

	assert.True(t, IsType(outer, TypeExtraction))
	assert.False(t, IsType(outer, TypeSynthesis))
	assert.False(t, IsType(nil, TypeExtraction))
	assert.False(t, IsType(errors.New("plain"), TypeExtraction))
}

func TestNewf(t *testing.T) {
	err := Newf(TypeNotFound, "job %s not found", "abc")
	require.Error(t, err)
	assert.True(t, IsType(err, TypeNotFound))
	assert.Contains(t, err.Error(), "job abc not found")
}
