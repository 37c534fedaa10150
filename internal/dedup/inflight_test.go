package dedup

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInFlight_BeginEnd(t *testing.T) {
	f := NewInFlight()

	assert.NoError(t, f.Begin("pi_1"))
	assert.ErrorIs(t, f.Begin("pi_1"), ErrAlreadyInProgress)
	assert.NoError(t, f.Begin("pi_2"))

	f.End("pi_1")
	assert.NoError(t, f.Begin("pi_1"))
}

func TestInFlight_ConcurrentDuplicates(t *testing.T) {
	f := NewInFlight()

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Begin("pi_shared"); err != nil {
				mu.Lock()
				conflicts++
				mu.Unlock()
				return
			}
			// Winner holds the marker until done, then releases.
			defer f.End("pi_shared")
			mu.Lock()
			wins++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, wins, 1)
	assert.Equal(t, attempts, wins+conflicts)
	assert.Equal(t, 0, f.Len(), "marker must not leak after completion")
}
