package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapturesStack(t *testing.T) {
	err := New(ErrorTypeConflict, "already registered")

	assert.Equal(t, "conflict: already registered", err.Error())
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestNewCapturesStack")
}

func TestSentinelHasNoStack(t *testing.T) {
	err := Sentinel(ErrorTypeOverflow, "pool overflowed")
	assert.Nil(t, err.Stack)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))

	err := Wrap(io.EOF, ErrorTypeInternal, "read failed")
	assert.Equal(t, "internal: read failed: EOF", err.Error())
	assert.True(t, stderrors.Is(err, io.EOF))
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeValidation, "bad input")
	outer := Wrap(inner, ErrorTypeConfig, "load failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeConfig))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeOverflow, "full")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "slow")))
	assert.False(t, IsRetryable(New(ErrorTypeValidation, "nil")))
	assert.False(t, IsRetryable(io.EOF))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeNotFound, "pool missing").WithDetail("key", 3)
	assert.Equal(t, 3, err.Details["key"])
}

func TestAs(t *testing.T) {
	var wrapped error = Wrapf(io.ErrUnexpectedEOF, ErrorTypeInternal, "step %d", 2)

	var target *Error
	require.True(t, As(wrapped, &target))
	assert.Equal(t, ErrorTypeInternal, target.Type)
	assert.Equal(t, "step 2", target.Message)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeOverflow, TypeOf(Wrap(New(ErrorTypeInternal, "x"), ErrorTypeOverflow, "y")))
	assert.Equal(t, ErrorType(""), TypeOf(io.EOF))
	assert.False(t, IsType(nil, ""))
}

func TestDetailAlongChain(t *testing.T) {
	inner := New(ErrorTypeNotFound, "pool missing").WithDetail("key", 3)
	outer := Wrap(stderrors.Join(io.EOF, inner), ErrorTypeConfig, "load failed").WithDetail("file", "pools.yaml")

	v, ok := Detail(outer, "file")
	require.True(t, ok)
	assert.Equal(t, "pools.yaml", v)

	v, ok = Detail(Wrap(inner, ErrorTypeConfig, "load failed"), "key")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = Detail(outer, "missing")
	assert.False(t, ok)
}

func TestFormatVerbose(t *testing.T) {
	err := New(ErrorTypeConflict, "already registered").WithDetail("key", 4)

	assert.Equal(t, "conflict: already registered", fmt.Sprintf("%v", err))
	verbose := fmt.Sprintf("%+v", err)
	assert.Contains(t, verbose, "key=4")
	assert.Contains(t, verbose, "TestFormatVerbose")
}
