package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackPushPopPeek(t *testing.T) {
	s := &Stack{}
	require.Equal(t, 0, s.Size())
	require.Nil(t, s.Pop())
	require.Nil(t, s.Peek())

	s.Push("a")
	s.Push("b")
	s.Push("c")
	require.Equal(t, 3, s.Size())
	require.Equal(t, "c", s.Peek())

	require.Equal(t, "c", s.Pop())
	require.Equal(t, "b", s.Pop())
	require.Equal(t, 1, s.Size())
	require.Equal(t, "a", s.Pop())
	require.Equal(t, 0, s.Size())
	require.Nil(t, s.Pop())
}

func TestStackIgnoresNilPush(t *testing.T) {
	s := &Stack{}
	s.Push(nil)
	require.Equal(t, 0, s.Size())
}

func TestStackGet(t *testing.T) {
	s := &Stack{}
	s.Push("bottom")
	s.Push("middle")
	s.Push("top")

	require.Equal(t, "top", s.Get(1))
	require.Equal(t, "middle", s.Get(2))
	require.Equal(t, "bottom", s.Get(3))
	require.Nil(t, s.Get(0))
	require.Nil(t, s.Get(4))

	require.Equal(t, s.Peek(), s.Get(1))
}
