package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelerBlockNamesAreUniquePerKind(t *testing.T) {
	l := NewLabeler()
	require.Equal(t, "if.then.0", l.Block(LabelIfThen))
	require.Equal(t, "if.then.1", l.Block(LabelIfThen))
	require.Equal(t, "while.head.0", l.Block(LabelWhileHead))
	require.Equal(t, "if.then.2", l.Block(LabelIfThen))
}

func TestLabelerBlockInvalidKind(t *testing.T) {
	l := NewLabeler()
	require.Equal(t, "label.invalid", l.Block(LabelKind(99)))
}

func TestLabelerConcurrentUnique(t *testing.T) {
	l := NewLabeler()
	const n = 100
	names := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			names[idx] = l.Block(LabelForHead)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, name := range names {
		require.False(t, seen[name], "duplicate label %s", name)
		seen[name] = true
	}
}

func TestInternKeyStableAndDistinct(t *testing.T) {
	a := InternKey("hello")
	b := InternKey("hello")
	c := InternKey("world")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Regexp(t, `^\.str\.[0-9a-f]{16}$`, a)
}
