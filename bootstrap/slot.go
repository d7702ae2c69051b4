package bootstrap

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// slot holds at most one value of T. The first callers of get share a single
// in-flight build; a failed build leaves the slot empty so that the next
// caller starts over.
type slot[T any] struct {
	group singleflight.Group
	value atomic.Pointer[T]
}

func (s *slot[T]) peek() *T {
	return s.value.Load()
}

func (s *slot[T]) get(
	ctx context.Context,
	build func(context.Context) (*T, error),
) (*T, error) {
	if v := s.value.Load(); v != nil {
		return v, nil
	}

	v, err, _ := s.group.Do("build", func() (any, error) {
		if v := s.value.Load(); v != nil {
			return v, nil
		}

		// The build outlives the invocation that triggered it.
		v, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.value.Store(v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
