package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := New(CodeNotFound, "receipt not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeUnavailable, "store down"))
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.Equal(t, CodeUnavailable, CodeOf(err))
	})

	t.Run("nested domain errors", func(t *testing.T) {
		inner := New(CodeTimeout, "deadline")
		outer := Wrap(inner, CodeInternal, "recalculate failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeTimeout))
		assert.Equal(t, "recalculate failed: deadline", outer.Error())
	})

	t.Run("plain error", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", MessageOf(err))
	})

	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
	})
}
