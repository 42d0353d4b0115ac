package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Error_ReturnsFormattedMessage(t *testing.T) {
	err := New(KindFileTooLarge, "file exceeds 1 MiB", nil)
	assert.Equal(t, "[FileTooLarge] file exceeds 1 MiB", err.Error())
}

func TestEngineError_Unwrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindPipelineFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestEngineError_Wrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindParseFailed, nil))
}

func TestEngineError_Is_MatchesByKind(t *testing.T) {
	a := New(KindSchemaMismatch, "v1 != v2", nil)
	b := New(KindSchemaMismatch, "different message", nil)
	c := New(KindDimensionMismatch, "384 != 768", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsStructural(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindSchemaMismatch, true},
		{KindFullTextIndexUnavailable, true},
		{KindVectorIndexUnavailable, true},
		{KindFileTooLarge, false},
		{KindDimensionMismatch, false},
	}

	for _, tt := range tests {
		err := New(tt.kind, "x", nil)
		assert.Equal(t, tt.want, IsStructural(err), "kind %s", tt.kind)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := Retryable(New(KindPipelineFailed, "sqlite busy", nil))
	assert.True(t, IsRetryable(retryable))

	notRetryable := New(KindDimensionMismatch, "384 != 768", nil)
	assert.False(t, IsRetryable(notRetryable))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestWithDetail_Chaining(t *testing.T) {
	err := New(KindPipelineFailed, "store phase failed", nil).
		WithDetail("stage", "store").
		WithDetail("file", "a.go")

	assert.Equal(t, "store", err.Details["stage"])
	assert.Equal(t, "a.go", err.Details["file"])
}

func TestPipelineFailed_SetsStageDetail(t *testing.T) {
	err := PipelineFailed("resolve", "dangling phantom table")
	assert.Equal(t, KindPipelineFailed, err.Kind)
	assert.Equal(t, "resolve", err.Details["stage"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindFileTooLarge, KindOf(New(KindFileTooLarge, "x", nil)))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
