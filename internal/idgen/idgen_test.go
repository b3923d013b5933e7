package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewRoomID()
		require.NoError(t, err)
		assert.Len(t, id, RoomIDLength)
		for _, c := range id {
			assert.True(t, strings.ContainsRune(roomIDChars, c), "unexpected char %q", c)
		}
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 90)
}

func TestNewULIDIsMonotonic(t *testing.T) {
	prev := NewULID()
	for i := 0; i < 50; i++ {
		next := NewULID()
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}
