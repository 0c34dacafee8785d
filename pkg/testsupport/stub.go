package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-readthrough/repository"
)

// StubRepository is an in-memory repository.Repository with call counters and
// hooks to slow down, block, fail or panic GetAll.
//
// Query returns a handle without a store; executing it fails with repository.ErrNoStore.
type StubRepository[T repository.Entity] struct {
	mu      sync.Mutex
	records []T
	assign  func(*T, int64)
	nextID  int64
	calls   map[string]int
	started chan struct{}
	once    sync.Once

	// Err is returned by every operation when set.
	Err error
	// Panic makes GetAll panic with the value when non-nil.
	Panic any
	// Delay is slept inside GetAll before returning.
	Delay time.Duration
	// Gate blocks GetAll until it is closed.
	Gate chan struct{}
}

// NewStubRepository holds records. assign stores a new identity on an added
// entity; it may be nil when the test never adds.
func NewStubRepository[T repository.Entity](assign func(*T, int64), records ...T) *StubRepository[T] {
	s := &StubRepository[T]{
		records: append([]T(nil), records...),
		assign:  assign,
		calls:   map[string]int{},
		started: make(chan struct{}),
	}
	for _, r := range records {
		s.nextID = max(s.nextID, r.GetID())
	}
	return s
}

// Calls returns how many times method was invoked.
func (s *StubRepository[T]) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// GetAllStarted is closed when GetAll is first entered.
func (s *StubRepository[T]) GetAllStarted() <-chan struct{} {
	return s.started
}

func (s *StubRepository[T]) SetRecords(records ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]T(nil), records...)
}

func (s *StubRepository[T]) record(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	return s.Err
}

func (s *StubRepository[T]) Add(ctx context.Context, entity T) (int64, error) {
	if err := s.record("Add"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if s.assign != nil {
		s.assign(&entity, s.nextID)
	}
	s.records = append(s.records, entity)
	return s.nextID, nil
}

func (s *StubRepository[T]) AddRange(ctx context.Context, entities []T) ([]int64, error) {
	if err := s.record("AddRange"); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(entities))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		s.nextID++
		if s.assign != nil {
			s.assign(&e, s.nextID)
		}
		s.records = append(s.records, e)
		ids = append(ids, s.nextID)
	}
	return ids, nil
}

func (s *StubRepository[T]) Update(ctx context.Context, entity T) (int64, error) {
	if err := s.record("Update"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.GetID() == entity.GetID() {
			s.records[i] = entity
			return 1, nil
		}
	}
	return 0, nil
}

func (s *StubRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	if err := s.record("Delete"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.GetID() == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *StubRepository[T]) GetByID(ctx context.Context, id int64, include ...string) (*T, error) {
	if err := s.record("GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.GetID() == id {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (s *StubRepository[T]) GetAll(ctx context.Context, include ...string) ([]T, error) {
	err := s.record("GetAll")
	s.once.Do(func() { close(s.started) })

	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Panic != nil {
		panic(s.Panic)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append(make([]T, 0, len(s.records)), s.records...), nil
}

// Find ignores the filter and returns every record.
func (s *StubRepository[T]) Find(ctx context.Context, filter repository.Filter, include ...string) ([]T, error) {
	if err := s.record("Find"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(make([]T, 0, len(s.records)), s.records...), nil
}

func (s *StubRepository[T]) Query(include ...string) repository.Query[T] {
	_ = s.record("Query")
	return repository.NewQuery[T](nil, include...)
}

var _ repository.Repository[fakeEntity] = (*StubRepository[fakeEntity])(nil)

type fakeEntity struct{ ID int64 }

func (f fakeEntity) GetID() int64 { return f.ID }
