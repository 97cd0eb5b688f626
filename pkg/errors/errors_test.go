package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.EqualError(t, err.Unwrap(), "boom")
}

func TestCloneMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", Clone(ErrNotFound, "org unit not found"))
	assert.True(t, stdErrors.Is(err, ErrNotFound))
	assert.False(t, stdErrors.Is(err, ErrConflict))
	assert.Equal(t, "org unit not found", FromError(err).Message)
}

func TestWithCodeKeepsStatus(t *testing.T) {
	err := WithCode(ErrConflict, "RELATION_DUPLICATE", "duplicate")
	assert.Equal(t, "RELATION_DUPLICATE", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "CONFLICT", ErrConflict.Code)
}
