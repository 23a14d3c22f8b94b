package userlock

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

func TestKeyedMutexSerializesSameUser(t *testing.T) {
	m := NewKeyedMutex()
	userID := uuid.New()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Lock(ctx, userID)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer release()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders: want=1 got=%d", maxSeen)
	}
	if n := m.size(); n != 0 {
		t.Fatalf("lock table not drained: want=0 got=%d", n)
	}
}

func TestKeyedMutexDifferentUsersDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	releaseA, err := m.Lock(ctx, uuid.New())
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer releaseA()
	releaseB, err := m.Lock(ctx, uuid.New())
	if err != nil {
		t.Fatalf("lock b: %v", err)
	}
	releaseB()
	releaseB()
}

func TestKeyedMutexHonorsContext(t *testing.T) {
	m := NewKeyedMutex()
	userID := uuid.New()
	release, err := m.Lock(context.Background(), userID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, userID)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestRedisLocker(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLocker(client, 5*time.Second, log)
	userID := uuid.New()
	release, err := l.Lock(context.Background(), userID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, userID); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second lock: expected ErrLockTimeout, got %v", err)
	}

	release()
	release2, err := l.Lock(context.Background(), userID)
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	release2()
}
