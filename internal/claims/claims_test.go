package claims

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/member-insights/internal/db"
)

func newTestCoordinator(t *testing.T) *SQLiteCoordinator {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewSQLiteCoordinator(d)
}

func TestAcquireThenDeny(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	ok, err := c.Acquire(ctx, "contact/CNT-1", 5*time.Second, "w1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = c.Acquire(ctx, "contact/CNT-1", 5*time.Second, "w2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Error("second acquire on live claim should be denied")
	}
}

func TestAcquireDistinctKeys(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	for _, key := range []string{"contact/CNT-1", "contact/CNT-2", "contact/CNT-3"} {
		ok, err := c.Acquire(ctx, key, 5*time.Second, "w1")
		if err != nil || !ok {
			t.Errorf("acquire %s: ok=%v err=%v", key, ok, err)
		}
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if ok, _ := c.Acquire(ctx, "contact/CNT-1", 5*time.Second, "w1"); !ok {
		t.Fatal("first acquire should succeed")
	}
	if err := c.Release(ctx, "contact/CNT-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := c.Acquire(ctx, "contact/CNT-1", 5*time.Second, "w2"); !ok {
		t.Error("acquire after release should succeed")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Release(ctx, "contact/never-claimed"); err != nil {
		t.Errorf("releasing unknown key should not error: %v", err)
	}
}

func TestExpiredClaimIsTakenOver(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if ok, _ := c.Acquire(ctx, "contact/CNT-1", 30*time.Millisecond, "w1"); !ok {
		t.Fatal("first acquire should succeed")
	}
	time.Sleep(50 * time.Millisecond)

	ok, err := c.Acquire(ctx, "contact/CNT-1", 5*time.Second, "w2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Error("acquire on expired claim should succeed")
	}
}

func TestConcurrentAcquireGrantsExactlyOne(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	granted := make(chan string, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		holder := string(rune('a' + i))
		go func() {
			defer wg.Done()
			<-start
			ok, err := c.Acquire(ctx, "contact/CNT-1", 5*time.Second, holder)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if ok {
				granted <- holder
			}
		}()
	}
	close(start)
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != 1 {
		t.Errorf("%d workers acquired the claim, want exactly 1", count)
	}
}
