package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WithDetailsDoesNotMutate(t *testing.T) {
	err := ErrValidationFailed.WithDetail("incomingOrder.side", "oneof=BUY SELL")

	assert.Equal(t, "oneof=BUY SELL", err.Details["incomingOrder.side"])
	assert.Nil(t, ErrValidationFailed.Details)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
}

func TestError_Is(t *testing.T) {
	err := ErrInvalidRequest.WithMessage("bad body")

	assert.True(t, Is(err, ErrInvalidRequest))
	assert.False(t, Is(err, ErrInternal))
	assert.True(t, Is(fmt.Errorf("wrapped: %w", err), ErrInvalidRequest))
	assert.False(t, Is(nil, ErrInternal))
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrInternal, cause)

	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, ErrInternal.Stack)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	biz := ErrServiceUnavailable.WithMessage("audit disabled")
	assert.Same(t, biz, FromError(fmt.Errorf("ctx: %w", biz)))

	converted := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, converted.Code)
	assert.Equal(t, http.StatusInternalServerError, converted.HTTPStatus)
}

func TestToHTTPStatusAndCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, ToHTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrInvalidRequest))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(ErrServiceUnavailable))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))

	assert.Equal(t, "", GetCode(nil))
	assert.Equal(t, "VALIDATION_FAILED", GetCode(ErrValidationFailed))
	assert.Equal(t, "UNKNOWN", GetCode(errors.New("plain")))
}
