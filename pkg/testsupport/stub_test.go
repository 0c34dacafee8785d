package testsupport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-readthrough/repository"
)

func assignFake(e *fakeEntity, id int64) { e.ID = id }

func TestStubRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	stub := NewStubRepository(assignFake, fakeEntity{ID: 3})

	id, err := stub.Add(ctx, fakeEntity{})
	if err != nil || id != 4 {
		t.Fatalf("Add() = %d, %v", id, err)
	}

	got, err := stub.GetByID(ctx, 4)
	if err != nil || got == nil || got.ID != 4 {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}

	if n, _ := stub.Update(ctx, fakeEntity{ID: 99}); n != 0 {
		t.Errorf("expected 0 rows for missing id, got %d", n)
	}
	if ok, _ := stub.Delete(ctx, 99); ok {
		t.Error("expected false for missing id")
	}
	if ok, _ := stub.Delete(ctx, 3); !ok {
		t.Error("expected delete of existing id")
	}

	all, _ := stub.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 record left, got %d", len(all))
	}
	if stub.Calls("Delete") != 2 || stub.Calls("GetAll") != 1 {
		t.Errorf("unexpected counters delete=%d getall=%d", stub.Calls("Delete"), stub.Calls("GetAll"))
	}
}

func TestStubRepository_Hooks(t *testing.T) {
	ctx := context.Background()

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		stub := NewStubRepository[fakeEntity](nil)
		stub.Err = boom
		if _, err := stub.GetAll(ctx); !errors.Is(err, boom) {
			t.Errorf("expected injected error, got %v", err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		stub := NewStubRepository[fakeEntity](nil)
		stub.Panic = "kaboom"
		defer func() {
			if r := recover(); r != "kaboom" {
				t.Errorf("expected panic kaboom, got %v", r)
			}
		}()
		_, _ = stub.GetAll(ctx)
	})

	t.Run("gate honours cancellation", func(t *testing.T) {
		stub := NewStubRepository[fakeEntity](nil)
		stub.Gate = make(chan struct{})
		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		if _, err := stub.GetAll(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		select {
		case <-stub.GetAllStarted():
		default:
			t.Error("expected started signal")
		}
	})

	t.Run("query has no store", func(t *testing.T) {
		stub := NewStubRepository[fakeEntity](nil)
		if _, err := stub.Query().All(ctx); !errors.Is(err, repository.ErrNoStore) {
			t.Errorf("expected ErrNoStore, got %v", err)
		}
	})
}
