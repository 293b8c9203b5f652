package mapper

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapSlice(t *testing.T) {
	t.Run("maps all elements", func(t *testing.T) {
		got := MapSlice([]int{1, 2, 3}, strconv.Itoa)
		assert.Equal(t, []string{"1", "2", "3"}, got)
	})

	t.Run("nil input returns nil", func(t *testing.T) {
		assert.Nil(t, MapSlice(nil, strconv.Itoa))
	})

	t.Run("empty input returns empty", func(t *testing.T) {
		got := MapSlice([]int{}, strconv.Itoa)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestMapSlicePtrSkipNil(t *testing.T) {
	type in struct{ v int }
	type out struct{ v string }

	toOut := func(i *in) *out {
		if i.v < 0 {
			return nil
		}
		return &out{v: strconv.Itoa(i.v)}
	}

	t.Run("skips nil inputs and outputs", func(t *testing.T) {
		items := []*in{{v: 1}, nil, {v: -5}, {v: 2}}
		got := MapSlicePtrSkipNil(items, toOut)
		assert.Equal(t, []*out{{v: "1"}, {v: "2"}}, got)
	})

	t.Run("nil input returns nil", func(t *testing.T) {
		assert.Nil(t, MapSlicePtrSkipNil(nil, toOut))
	})
}
