package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("append: %w", Wrap(KindConflict, "room exists", cause))

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(AccessDenied("no"), KindAccessDenied))
	assert.False(t, Is(nil, KindInternal))
	assert.False(t, Is(InvalidInput("bad"), KindNotFound))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "message not found", NotFound("message not found").Error())
	assert.Equal(t, "store: boom", Wrap(KindInternal, "store", errors.New("boom")).Error())
	assert.Equal(t, "invalid_input", KindInvalidInput.String())
}
