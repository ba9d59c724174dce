package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLockers_ImplementReferenceLocker(t *testing.T) {
	assert.Implements(t, (*ports.ReferenceLocker)(nil), NewKeyedMutex())
	assert.Implements(t, (*ports.ReferenceLocker)(nil), &RedisLocker{})
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, DefaultRedisLockerConfig(), zap.NewNop()), mr
}

// exclusive runs n goroutines that each hold the lock briefly and reports the
// highest number of simultaneous holders observed
func exclusive(t *testing.T, locker ports.ReferenceLocker, n int) int32 {
	t.Helper()
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			release, err := locker.Lock(ctx, "IGA_1_abc")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	return peak
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	assert.Equal(t, int32(1), exclusive(t, km, 20))
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	releaseA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	releaseB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex()
	release, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "a")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConcurrentModification))
	release()
	release()
	assert.Equal(t, 0, km.size())
}

func TestRedisLocker_SerializesSameKey(t *testing.T) {
	locker, _ := newRedisLocker(t)
	assert.Equal(t, int32(1), exclusive(t, locker, 8))
}

func TestRedisLocker_ReleaseDeletesOnlyOwnToken(t *testing.T) {
	locker, mr := newRedisLocker(t)

	release, err := locker.Lock(context.Background(), "ref")
	require.NoError(t, err)
	assert.True(t, mr.Exists(defaultKeyPrefix+"ref"))

	// simulate lease expiry and takeover by another holder
	require.NoError(t, mr.Set(defaultKeyPrefix+"ref", "someone-else"))
	release()

	val, err := mr.Get(defaultKeyPrefix + "ref")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	locker, mr := newRedisLocker(t)
	release, err := locker.Lock(context.Background(), "ref")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "ref")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConcurrentModification))

	release()
	assert.False(t, mr.Exists(defaultKeyPrefix+"ref"))
}

func TestRedisLocker_SetsLeaseTTL(t *testing.T) {
	locker, mr := newRedisLocker(t)
	release, err := locker.Lock(context.Background(), "ref")
	require.NoError(t, err)
	defer release()

	assert.Equal(t, DefaultRedisLockerConfig().TTL, mr.TTL(defaultKeyPrefix+"ref"))
}
