package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pscheid92/storepulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{NotFoundError("gone", nil), http.StatusNotFound},
		{RateLimitedError("slow down"), http.StatusTooManyRequests},
		{UnavailableError("full"), http.StatusServiceUnavailable},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{&Error{Type: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "validation: name is required", ValidationError("name is required").Error())

	err := InternalError("encode failed", errors.New("bad payload"))
	assert.Equal(t, "internal: encode failed: bad payload", err.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("product %q: %w", "p1", domain.ErrNotFound)
	err := NotFoundError("product not found", cause)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, ValidationError("x").Unwrap())
}

func TestWithField(t *testing.T) {
	err := ValidationError("invalid price").WithField("field", "price").WithField("value", -1.0)

	assert.Equal(t, map[string]any{"field": "price", "value": -1.0}, err.Context)

	bare := &Error{Type: TypeValidation}
	bare.WithField("k", "v")
	assert.Equal(t, "v", bare.Context["k"])
}

func TestToResponse(t *testing.T) {
	resp := ValidationError("quantity must be at least 1").WithField("field", "quantity").ToResponse()

	assert.Equal(t, "quantity must be at least 1", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "quantity", resp.Context["field"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured passes through", func(t *testing.T) {
		original := ValidationError("bad")
		assert.Same(t, original, AsStructuredError(original))
	})

	t.Run("wrapped structured", func(t *testing.T) {
		original := RateLimitedError("slow down")
		assert.Same(t, original, AsStructuredError(fmt.Errorf("handler: %w", original)))
	})

	t.Run("domain not found", func(t *testing.T) {
		err := AsStructuredError(fmt.Errorf("product %q: %w", "p1", domain.ErrNotFound))
		require.NotNil(t, err)
		assert.Equal(t, TypeNotFound, err.Type)
		assert.Equal(t, `product "p1": not found`, err.Message)
	})

	t.Run("plain error is internal", func(t *testing.T) {
		err := AsStructuredError(errors.New("disk on fire"))
		assert.Equal(t, TypeInternal, err.Type)
		assert.Equal(t, "internal server error", err.Message)
	})
}
