package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool_Reuse(t *testing.T) {
	require := require.New(t)

	timer := GetTimer(time.Millisecond)
	require.NotNil(timer)
	<-timer.C
	PutTimer(timer)

	// Whatever the pool hands out next must honor the new duration, with
	// no stale tick left over from the previous owner.
	begin := time.Now()
	timer = GetTimer(50 * time.Millisecond)
	fired := <-timer.C
	require.GreaterOrEqual(fired.Sub(begin), 35*time.Millisecond)
	PutTimer(timer)
}

func TestTimerPool_PutWhileArmed(t *testing.T) {
	require := require.New(t)

	armed := GetTimer(10 * time.Second)
	PutTimer(armed)

	timer := GetTimer(20 * time.Millisecond)
	select {
	case <-timer.C:
	case <-time.After(time.Second):
		require.FailNow("recycled timer never fired")
	}
	PutTimer(timer)
}

func TestTimerPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer := GetTimer(5 * time.Millisecond)
			defer PutTimer(timer)
			<-timer.C
		}()
	}
	wg.Wait()
}
