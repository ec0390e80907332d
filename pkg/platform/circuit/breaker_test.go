package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("counter-redis")
	assert.Equal(t, "counter-redis", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(3))

	for i := range 2 {
		useFallback, change := b.RecordFailure()
		require.False(t, useFallback, "failure %d", i+1)
		require.False(t, change.Opened)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback, "an open breaker keeps routing to the fallback")
	assert.False(t, change.Opened, "the transition is reported once")
}

func TestSuccessBreaksFailureStreak(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(2))

	b.RecordFailure()
	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary)

	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback, "streak restarted after the success")
	assert.False(t, b.IsOpen())
}

func TestBreakerClosesAfterHealthyProbes(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(1), WithSuccessThreshold(3))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	for range 2 {
		usePrimary, change := b.RecordSuccess()
		assert.False(t, usePrimary, "probe results are not trusted while open")
		assert.False(t, change.Closed)
	}
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestFailedProbeRestartsRecovery(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordFailure()
	_, change := b.RecordSuccess()
	assert.False(t, change.Closed, "one probe after a failed one is not enough")
	_, change = b.RecordSuccess()
	assert.True(t, change.Closed)
}

func TestInvalidThresholdsKeepDefaults(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestResetClosesBreaker(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("counter-redis", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				b.RecordFailure()
				b.RecordSuccess()
			}
		}()
	}
	wg.Wait()
	assert.False(t, b.IsOpen())
}
