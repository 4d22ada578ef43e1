package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

func TestUserLocks_LockUnlock(t *testing.T) {
	l := NewUserLocks()
	unlock, err := l.Lock(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()

	unlock, err = l.Lock(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	unlock()
}

func TestUserLocks_TimesOutWhenHeld(t *testing.T) {
	l := NewUserLocks()
	unlock, err := l.Lock(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "user-1")
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("Lock while held = %v, want ErrBusy", err)
	}
}

func TestUserLocks_FreeLockWithExpiredContext(t *testing.T) {
	l := NewUserLocks()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	unlock, err := l.Lock(ctx, "user-1")
	if err != nil {
		t.Fatalf("free lock should be acquired even with a done context: %v", err)
	}
	unlock()
}

func TestUserLocks_MutualExclusion(t *testing.T) {
	l := NewUserLocks()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "user-1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}
