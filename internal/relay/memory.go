package relay

import (
	"context"
	"sync"
)

// MemorySlot is an in-process Slot. Watchers run synchronously inside Set,
// in registration order, and notifications follow write order.
type MemorySlot struct {
	writeMu sync.Mutex

	mu       sync.Mutex
	value    []byte
	watchers []watcher
	nextID   int
}

type watcher struct {
	id int
	fn func([]byte)
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Set(ctx context.Context, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.value = append([]byte(nil), value...)
	ws := append([]watcher(nil), s.watchers...)
	s.mu.Unlock()

	for _, w := range ws {
		w.fn(append([]byte(nil), value...))
	}
	return nil
}

func (s *MemorySlot) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil, ErrEmpty
	}
	return append([]byte(nil), s.value...), nil
}

func (s *MemorySlot) Watch(ctx context.Context, fn func([]byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers = append(s.watchers, watcher{id: id, fn: fn})
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}()
	return nil
}
