package memory

import (
	"fmt"
	"sync"
)

// SequencedStore — потокобезопасная таблица с выдачей монотонных целочисленных
// идентификаторов. Счётчик и map меняются только вместе под одной блокировкой.
type SequencedStore[T any] struct {
	mu      sync.RWMutex
	seq     int64
	records map[int64]T
	order   []int64
}

// NewSequencedStore возвращает пустое хранилище; первый выданный id равен 1.
func NewSequencedStore[T any]() *SequencedStore[T] {
	return &SequencedStore[T]{
		records: make(map[int64]T),
	}
}

// Insert выдаёт следующий id, собирает запись через build и сохраняет её.
// build вызывается под блокировкой и не должен обращаться к этому же хранилищу.
func (s *SequencedStore[T]) Insert(build func(id int64) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := s.seq
	if _, exists := s.records[id]; exists {
		// Повторная выдача id невозможна при корректной блокировке.
		panic(fmt.Sprintf("sequenced store: id %d issued twice", id))
	}

	record := build(id)
	s.records[id] = record
	s.order = append(s.order, id)
	return record
}

// Get возвращает запись и признак её наличия.
func (s *SequencedStore[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	return record, ok
}

// List возвращает копию записей в порядке вставки.
func (s *SequencedStore[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.records[id])
	}
	return result
}

// Len возвращает количество записей.
func (s *SequencedStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// LastID возвращает последний выданный идентификатор (0, если записей не было).
func (s *SequencedStore[T]) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}
