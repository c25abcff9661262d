package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoriesMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("submit: %w", Validation("amount must be positive"))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "amount must be positive", Message(err))
}

func TestUpstreamKeepsCause(t *testing.T) {
	err := Upstream("mongo", errors.New("dial tcp: refused"))
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "mongo unavailable")
}

func TestForbiddenHasNoDetail(t *testing.T) {
	assert.Equal(t, "forbidden", Forbidden().Error())
}
