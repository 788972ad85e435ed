package util

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerrorAppendAndErrors(t *testing.T) {
	pe := NewPerror(4)
	pe.Append(errors.New("one"))
	pe.Append(nil)
	pe.Append(errors.New("two"))
	pe.Stop()

	require.Equal(t, 2, pe.Len())
	got := pe.Errors()
	require.Len(t, got, 2)
	require.EqualError(t, got[0], "one")
	require.EqualError(t, got[1], "two")
}

func TestPerrorConcurrentAppend(t *testing.T) {
	pe := NewPerror(0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pe.Append(errors.New("err"))
		}(i)
	}
	wg.Wait()
	pe.Stop()
	require.Equal(t, 32, pe.Len())
}
