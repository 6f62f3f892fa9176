package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/taintflow/api/schemas"
)

func sampleRanges() []schemas.TaintRange {
	return []schemas.TaintRange{
		{Start: 0, Length: 4, Source: &schemas.Source{Name: "q", Origin: schemas.OriginParameter}},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := New()

	ranges := sampleRanges()
	r.Register(7, ranges)

	got := r.Lookup(7)
	require.Len(t, got, 1)
	assert.Equal(t, ranges[0], got[0])
	assert.True(t, r.IsTainted(7))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryZeroHandleIsInert(t *testing.T) {
	r := New()

	r.Register(0, sampleRanges())
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Lookup(0))
	assert.False(t, r.IsTainted(0))
}

func TestRegistryIgnoresEmptyRanges(t *testing.T) {
	r := New()

	r.Register(3, nil)
	r.Register(3, []schemas.TaintRange{})
	assert.False(t, r.IsTainted(3))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryDoubleRegistrationPanics(t *testing.T) {
	r := New()
	r.Register(9, sampleRanges())

	assert.PanicsWithValue(t, "registry: handle 9 registered twice", func() {
		r.Register(9, sampleRanges())
	})
}

func TestRegistryRemove(t *testing.T) {
	r := New()
	r.Register(5, sampleRanges())

	r.Remove(5)
	assert.False(t, r.IsTainted(5))

	// Removing an absent handle must not fail.
	r.Remove(5)
	r.Remove(12345)
}

func TestRegistryClear(t *testing.T) {
	r := New()
	for h := Handle(1); h <= 10; h++ {
		r.Register(h, sampleRanges())
	}
	require.Equal(t, 10, r.Len())

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsTainted(1))

	// The registry stays usable after a clear.
	r.Register(1, sampleRanges())
	assert.True(t, r.IsTainted(1))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				h := Handle(worker*1000 + n + 1)
				r.Register(h, sampleRanges())
				_ = r.Lookup(h)
				_ = r.IsTainted(h)
				if n%2 == 0 {
					r.Remove(h)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16*50, r.Len(), "half of each worker's handles should survive")
}
