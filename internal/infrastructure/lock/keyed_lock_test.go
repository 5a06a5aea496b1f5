package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLockerSerializesSameKey(t *testing.T) {
	locker := NewKeyedLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Acquire(ctx, "u1")
			if !assert.NoError(t, err) {
				return
			}
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, locker.Len())
}

func TestKeyedLockerDifferentKeysDoNotBlock(t *testing.T) {
	locker := NewKeyedLocker()
	ctx := context.Background()

	unlockA, err := locker.Acquire(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := locker.Acquire(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring key b blocked on key a")
	}
}

func TestKeyedLockerContextCancel(t *testing.T) {
	locker := NewKeyedLocker()

	unlock, err := locker.Acquire(context.Background(), "u1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // 重复释放无副作用
	assert.Equal(t, 0, locker.Len())
}

func TestLockersImplementLocker(t *testing.T) {
	var lockers []Locker
	lockers = append(lockers, NewKeyedLocker(), NewRedisLocker(nil, time.Second, time.Millisecond, 1))
	assert.Len(t, lockers, 2)
}
