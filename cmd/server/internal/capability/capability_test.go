package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFlags(t *testing.T) {
	t.Run("ManagerHasEverything", func(t *testing.T) {
		for _, flag := range []Set{View, Upload, Feedback, Comment, Rejudge, Grade, ViewOutput} {
			assert.True(t, ManagerSet.Has(flag), "manager set missing %s", flag)
		}
	})

	t.Run("AuthorCannotRejudge", func(t *testing.T) {
		assert.True(t, AuthorSet.Has(View))
		assert.True(t, AuthorSet.Has(Upload))
		assert.True(t, AuthorSet.Has(Feedback))
		assert.False(t, AuthorSet.Has(Rejudge))
		assert.False(t, AuthorSet.Has(Grade))
		assert.False(t, AuthorSet.Has(ViewOutput))
	})

	t.Run("HasNeedsAllBits", func(t *testing.T) {
		set := View | Upload
		assert.True(t, set.Has(View|Upload))
		assert.False(t, set.Has(View|Grade))
	})
}

func TestSetEncoding(t *testing.T) {
	for _, set := range []Set{0, View, AuthorSet, ManagerSet, AuthorSet | ViewOutput} {
		decoded, ok := decode(set.encode())
		require.True(t, ok)
		assert.Equal(t, set, decoded)
	}

	t.Run("GarbageRejected", func(t *testing.T) {
		_, ok := decode("not-a-set")
		assert.False(t, ok)

		_, ok = decode("9999")
		assert.False(t, ok, "out of range for the flag byte")
	})
}

func TestSetString(t *testing.T) {
	assert.Equal(t, "none", Set(0).String())
	assert.Equal(t, "view", View.String())
	assert.Equal(t, "view|upload|feedback", AuthorSet.String())
}
