package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualTime_SetAndAdvance(t *testing.T) {
	m := NewManualTime(100)
	assert.Equal(t, int64(100), m.Now())

	assert.Equal(t, int64(150), m.Advance(50))
	assert.Equal(t, int64(150), m.Now())

	m.Set(20)
	assert.Equal(t, int64(20), m.Now(), "Set may move backwards")
}

func TestManualTime_ConcurrentAdvance(t *testing.T) {
	m := NewManualTime(0)
	const goroutines = 50

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Advance(2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2*goroutines), m.Now())
}
