package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsLiveState(t *testing.T) {
	r := NewRegister()

	var mu sync.Mutex
	counter := 0
	r.Register("sync-1", func() any {
		mu.Lock()
		defer mu.Unlock()
		return counter
	})

	got, ok := r.Snapshot("sync-1")
	require.True(t, ok)
	assert.Equal(t, 0, got)

	mu.Lock()
	counter = 7
	mu.Unlock()

	got, ok = r.Snapshot("sync-1")
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestUnknownInstance(t *testing.T) {
	r := NewRegister()
	_, ok := r.Snapshot("nope")
	assert.False(t, ok)
}

func TestMultipleStatusShapesCoexist(t *testing.T) {
	r := NewRegister()
	r.Register("sync-1", func() any { return map[string]int{"fetched": 3} })
	r.Register("reply-1", func() any { return "generating" })

	syncStatus, ok := r.Snapshot("sync-1")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"fetched": 3}, syncStatus)

	replyStatus, ok := r.Snapshot("reply-1")
	require.True(t, ok)
	assert.Equal(t, "generating", replyStatus)

	assert.ElementsMatch(t, []string{"sync-1", "reply-1"}, r.Instances())
}

func TestUnregister(t *testing.T) {
	r := NewRegister()
	r.Register("sync-1", func() any { return 1 })
	r.Unregister("sync-1")
	_, ok := r.Snapshot("sync-1")
	assert.False(t, ok)
	assert.Empty(t, r.Instances())
}

func TestConcurrentPollers(t *testing.T) {
	r := NewRegister()
	r.Register("sync-1", func() any { return 1 })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := r.Snapshot("sync-1")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}
