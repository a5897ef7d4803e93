package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := NewError(KindCheckoutCreationFailed, "Could not start checkout.", errors.New("boom"))

	assert.ErrorIs(t, err, ErrCheckoutCreationFailed)
	assert.NotErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, "Could not start checkout.: boom", err.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewError(KindRequestInFlight, "", nil))
	assert.Equal(t, KindRequestInFlight, KindOf(wrapped))
	assert.Equal(t, KindPlanUnavailable, KindOf(fmt.Errorf("x: %w", ErrPlanUnavailable)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("other")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Try later.", UserMessage(NewError(KindNetwork, "Try later.", nil)))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(errors.New("raw")))
}

func TestError_ErrorFallbacks(t *testing.T) {
	assert.Equal(t, "network", NewError(KindNetwork, "", nil).Error())
	assert.Equal(t, "cause", NewError(KindNetwork, "", errors.New("cause")).Error())
}
