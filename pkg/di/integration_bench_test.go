package di

import (
	"context"
	"testing"

	"github.com/goliatone/go-readthrough/books"
	"github.com/goliatone/go-readthrough/cache"
	"github.com/goliatone/go-readthrough/repository"
)

func BenchmarkGetBooks_Cached(b *testing.B) {
	c, _ := seededContainer(b)
	svc := c.BookService()
	ctx := context.Background()

	if res := svc.GetBooks(ctx); res.IsFailure() {
		b.Fatalf("warmup failed: %v", res.Err())
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if res := svc.GetBooks(ctx); res.IsFailure() {
				b.Errorf("GetBooks failed: %v", res.Err())
			}
		}
	})
}

func BenchmarkGetByID_CachedVsBase(b *testing.B) {
	c, lib := seededContainer(b)
	base := books.NewBookRepository(c.DB())
	cached := NewCachedRepository[books.Book](c, base)
	id := lib.Books[0].ID
	ctx := context.Background()

	b.Run("base", func(b *testing.B) {
		for range b.N {
			if _, err := base.GetByID(ctx, id, "Author"); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("cached", func(b *testing.B) {
		for range b.N {
			if _, err := cached.GetByID(ctx, id, "Author"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkKeySerialization(b *testing.B) {
	serializer := cache.NewDefaultKeySerializer()
	filter := repository.And(
		repository.Contains("title", "Programming"),
		repository.Or(repository.Eq("author.last_name", "Kernighan"), repository.IsNull("author_id")),
		repository.In("id", 1, 2, 3, 5, 8),
	)

	b.ReportAllocs()
	for range b.N {
		_ = serializer.SerializeKey("Find", filter, []string{"Author"})
	}
}
