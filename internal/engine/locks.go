package engine

import (
	"context"
	"hash/fnv"

	"github.com/efreitasn/papertrade/internal/domain"
)

const lockStripes = 64

// UserLocks serializes settlement per user. Users are spread across a fixed
// number of stripes by FNV-1a hash, so unrelated users rarely contend and
// the lock table never grows.
type UserLocks struct {
	stripes [lockStripes]chan struct{}
}

func NewUserLocks() *UserLocks {
	l := &UserLocks{}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

// Lock blocks until the stripe for userID is free or ctx is done. On
// success it returns the unlock function; otherwise it returns
// domain.ErrBusy.
func (l *UserLocks) Lock(ctx context.Context, userID string) (func(), error) {
	ch := l.stripes[stripeFor(userID)]
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	default:
	}
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, domain.ErrBusy
	}
}

func stripeFor(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % lockStripes
}
