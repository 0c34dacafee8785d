package books_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/goliatone/go-readthrough/books"
	"github.com/goliatone/go-readthrough/cache"
	"github.com/goliatone/go-readthrough/pkg/testsupport"
	"github.com/goliatone/go-readthrough/result"
)

type logEntry struct {
	level string
	msg   string
	kv    []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Warn(msg string, kv ...any)  { l.add("warn", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

// failingCache fails every call.
type failingCache struct {
	err error
}

func (f failingCache) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) ([]books.BookModel, error)) ([]books.BookModel, error) {
	return nil, f.err
}

func (f failingCache) Delete(ctx context.Context, key string) error { return f.err }

func (f failingCache) DeleteByPrefix(ctx context.Context, prefix string) error { return f.err }

func (f failingCache) InvalidateKeys(ctx context.Context, keys []string) error { return f.err }

func newBookCache(t *testing.T) cache.Service[[]books.BookModel] {
	t.Helper()
	c, err := cache.NewTypedService[[]books.BookModel](cache.DefaultConfig(), nil)
	require.NoError(t, err)
	return c
}

func stubBooks(records ...books.Book) *testsupport.StubRepository[books.Book] {
	return testsupport.NewStubRepository(func(b *books.Book, id int64) { b.ID = id }, records...)
}

func stubAuthors(records ...books.Author) *testsupport.StubRepository[books.Author] {
	return testsupport.NewStubRepository(func(a *books.Author, id int64) { a.ID = id }, records...)
}

// newSQLiteService returns a service over a seeded in-memory database.
func newSQLiteService(t *testing.T, opts ...books.Option) (*books.Service, testsupport.Library) {
	t.Helper()
	db := testsupport.NewSQLiteDB(t)
	lib := testsupport.Seed(t, db, testsupport.DefaultLibrary())
	svc := books.NewService(books.NewBookRepository(db), books.NewAuthorRepository(db), newBookCache(t), opts...)
	return svc, lib
}

func errorCodes(errs []result.Error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestGetBooks_ReturnsBooksWithAuthors(t *testing.T) {
	svc, lib := newSQLiteService(t)

	res := svc.GetBooks(context.Background())
	require.True(t, res.IsSuccess(), "unexpected failure: %v", res.Err())

	got := res.Value()
	require.Len(t, got, len(lib.Books))
	require.Equal(t, "The Dispossessed", got[0].Title)
	require.NotNil(t, got[0].Author)
	require.Equal(t, "Le Guin", got[0].Author.LastName)
	require.Equal(t, lib.Authors[0].ID, got[0].Author.ID)

	beowulf := got[len(got)-1]
	require.Equal(t, "Beowulf", beowulf.Title)
	require.Nil(t, beowulf.Author)
}

func TestGetBooks_EmptyStoreReturnsEmptyList(t *testing.T) {
	svc := books.NewService(stubBooks(), stubAuthors(), newBookCache(t))

	res := svc.GetBooks(context.Background())
	require.True(t, res.IsSuccess())
	require.NotNil(t, res.Value())
	require.Empty(t, res.Value())
}

func TestGetBooks_ServedFromCache(t *testing.T) {
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu"})
	svc := books.NewService(repo, stubAuthors(), newBookCache(t))
	ctx := context.Background()

	first := svc.GetBooks(ctx)
	require.True(t, first.IsSuccess())

	repo.SetRecords(books.Book{ID: 1, Title: "changed behind the cache"})
	for range 3 {
		res := svc.GetBooks(ctx)
		require.True(t, res.IsSuccess())
		require.Equal(t, first.Value(), res.Value())
	}
	require.Equal(t, 1, repo.Calls("GetAll"))
}

func TestGetBooks_ReturnedListIsACopy(t *testing.T) {
	author := books.Author{ID: 3, LastName: "Le Guin"}
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu", AuthorID: testsupport.Ref(int64(3)), Author: &author})
	svc := books.NewService(repo, stubAuthors(), newBookCache(t))
	ctx := context.Background()

	got := svc.GetBooks(ctx).Value()
	got[0].Title = "mutated"
	got[0].Author.LastName = "mutated"

	again := svc.GetBooks(ctx).Value()
	require.Equal(t, "Tehanu", again[0].Title)
	require.Equal(t, "Le Guin", again[0].Author.LastName)
}

func TestGetBooks_ConcurrentMissesLoadOnce(t *testing.T) {
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu"}, books.Book{ID: 2, Title: "Beowulf"})
	repo.Gate = make(chan struct{})
	svc := books.NewService(repo, stubAuthors(), newBookCache(t))

	const callers = 20
	results := make([]result.Result[[]books.BookModel], callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.GetBooks(context.Background())
		}()
	}

	<-repo.GetAllStarted()
	// let the remaining callers join the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(repo.Gate)
	wg.Wait()

	require.Equal(t, 1, repo.Calls("GetAll"))
	for _, res := range results {
		require.True(t, res.IsSuccess())
		require.Len(t, res.Value(), 2)
	}
}

func TestGetBooks_FailuresAreUnexpectedAndNotCached(t *testing.T) {
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu"})
	log := &recordingLogger{}
	svc := books.NewService(repo, stubAuthors(), newBookCache(t), books.WithLogger(log))
	ctx := context.Background()

	repo.Err = errors.New("connection refused")
	res := svc.GetBooks(ctx)
	require.True(t, res.IsFailure())
	require.Len(t, res.Errors(), 1)
	require.Equal(t, result.KindUnexpected, res.FirstError().Kind)
	require.Equal(t, "books.get_all.failed", res.FirstError().Code)
	require.Contains(t, res.FirstError().Message, "connection refused")

	repo.Err = nil
	res = svc.GetBooks(ctx)
	require.True(t, res.IsSuccess())
	require.Equal(t, 2, repo.Calls("GetAll"))

	entries := log.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "error", entries[0].level)
}

func TestGetBooks_RecoversPanics(t *testing.T) {
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu"})
	repo.Panic = "mapping exploded"
	svc := books.NewService(repo, stubAuthors(), newBookCache(t))

	var res result.Result[[]books.BookModel]
	require.NotPanics(t, func() { res = svc.GetBooks(context.Background()) })
	require.True(t, res.IsFailure())
	require.Equal(t, result.KindUnexpected, res.FirstError().Kind)
	require.Contains(t, res.FirstError().Message, "mapping exploded")

	repo.Panic = nil
	require.True(t, svc.GetBooks(context.Background()).IsSuccess())
}

func TestGetBooks_CacheFailureIsUnexpected(t *testing.T) {
	svc := books.NewService(stubBooks(), stubAuthors(), failingCache{err: errors.New("cache offline")})

	res := svc.GetBooks(context.Background())
	require.True(t, res.IsFailure())
	require.Equal(t, "books.get_all.failed", res.FirstError().Code)
	require.Equal(t, result.KindUnexpected, res.FirstError().Kind)
}

func TestGetBooks_RedactsUnexpectedMessages(t *testing.T) {
	repo := stubBooks()
	repo.Err = errors.New("pq: password authentication failed for user reader")
	log := &recordingLogger{}
	svc := books.NewService(repo, stubAuthors(), newBookCache(t), books.WithLogger(log), books.WithRedactErrors(true))

	res := svc.GetBooks(context.Background())
	require.True(t, res.IsFailure())

	msg := res.FirstError().Message
	require.NotContains(t, msg, "password")
	m := regexp.MustCompile(`^an unexpected error occurred \(incident ([0-9a-f-]{36})\)$`).FindStringSubmatch(msg)
	require.NotNil(t, m, "unexpected message %q", msg)

	entries := log.Entries()
	require.Len(t, entries, 1)
	logged := fmt.Sprint(entries[0].kv...)
	require.Contains(t, logged, m[1])
	require.Contains(t, logged, "password authentication failed")
}

func TestGetBooks_CancelledContext(t *testing.T) {
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu"})
	repo.Delay = time.Hour
	svc := books.NewService(repo, stubAuthors(), newBookCache(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := svc.GetBooks(ctx)
	require.True(t, res.IsFailure())
	require.Equal(t, result.KindUnexpected, res.FirstError().Kind)

	repo.Delay = 0
	res = svc.GetBooks(context.Background())
	require.True(t, res.IsSuccess(), "a cancelled load must not be cached")
	require.Len(t, res.Value(), 1)
}

func TestGetBooks_CustomCacheKey(t *testing.T) {
	c := newBookCache(t)
	repo := stubBooks(books.Book{ID: 1, Title: "Tehanu"})
	svc := books.NewService(repo, stubAuthors(), c, books.WithCacheKey("library"))
	ctx := context.Background()

	require.Equal(t, "library", svc.CacheKey())
	require.True(t, svc.GetBooks(ctx).IsSuccess())

	cached, err := c.GetOrFetch(ctx, "library", func(context.Context) ([]books.BookModel, error) {
		return nil, errors.New("expected a cache hit")
	})
	require.NoError(t, err)
	require.Len(t, cached, 1)
}

func TestWrites_InvalidateListing(t *testing.T) {
	svc, lib := newSQLiteService(t)
	ctx := context.Background()

	require.Len(t, svc.GetBooks(ctx).Value(), 5)

	created := svc.CreateBook(ctx, books.CreateBookInput{Title: "  Tehanu ", AuthorID: &lib.Authors[0].ID})
	require.True(t, created.IsSuccess(), "create failed: %v", created.Err())
	require.Equal(t, "Tehanu", created.Value().Title)
	require.Equal(t, "Le Guin", created.Value().Author.LastName)
	require.Len(t, svc.GetBooks(ctx).Value(), 6)

	id := created.Value().ID
	updated := svc.UpdateBook(ctx, id, books.UpdateBookInput{Title: "Tehanu (1990)"})
	require.True(t, updated.IsSuccess(), "update failed: %v", updated.Err())
	require.Nil(t, updated.Value().Author)

	listing := svc.GetBooks(ctx).Value()
	require.Equal(t, "Tehanu (1990)", listing[len(listing)-1].Title)

	require.True(t, svc.DeleteBook(ctx, id).IsSuccess())
	require.Len(t, svc.GetBooks(ctx).Value(), 5)
}

func TestWrites_InvalidationFailureOnlyWarns(t *testing.T) {
	db := testsupport.NewSQLiteDB(t)
	log := &recordingLogger{}
	svc := books.NewService(books.NewBookRepository(db), books.NewAuthorRepository(db),
		failingCache{err: errors.New("cache offline")}, books.WithLogger(log))

	res := svc.CreateBook(context.Background(), books.CreateBookInput{Title: "Beowulf"})
	require.True(t, res.IsSuccess())

	entries := log.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "warn", entries[0].level)
}

func TestGetBook(t *testing.T) {
	svc, lib := newSQLiteService(t)
	ctx := context.Background()

	res := svc.GetBook(ctx, lib.Books[2].ID)
	require.True(t, res.IsSuccess())
	require.Equal(t, "The Go Programming Language", res.Value().Title)
	require.Equal(t, "Pike", res.Value().Author.LastName)

	missing := svc.GetBook(ctx, 999)
	require.True(t, missing.IsFailure())
	require.Equal(t, result.KindNotFound, missing.FirstError().Kind)
	require.Equal(t, "books.not_found", missing.FirstError().Code)

	invalid := svc.GetBook(ctx, 0)
	require.Equal(t, []string{"book.id.required"}, errorCodes(invalid.Errors()))
}

func TestCreateBook_Validation(t *testing.T) {
	svc, _ := newSQLiteService(t)

	tests := []struct {
		name  string
		input books.CreateBookInput
		want  []string
	}{
		{
			name:  "blank title",
			input: books.CreateBookInput{Title: "   "},
			want:  []string{"book.title.required"},
		},
		{
			name:  "title too long",
			input: books.CreateBookInput{Title: strings.Repeat("x", 256)},
			want:  []string{"book.title.length_out_of_range"},
		},
		{
			name:  "all field errors are reported",
			input: books.CreateBookInput{AuthorID: testsupport.Ref(int64(0))},
			want:  []string{"book.author_id.nil_or_not_empty_required", "book.title.required"},
		},
		{
			name:  "negative author",
			input: books.CreateBookInput{Title: "Tehanu", AuthorID: testsupport.Ref(int64(-4))},
			want:  []string{"book.author_id.min_greater_equal_than_required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.CreateBook(context.Background(), tt.input)
			require.True(t, res.IsFailure())
			require.Equal(t, tt.want, errorCodes(res.Errors()))
			for _, e := range res.Errors() {
				require.Equal(t, result.KindValidation, e.Kind)
			}
		})
	}
}

func TestCreateBook_UnknownAuthor(t *testing.T) {
	svc, _ := newSQLiteService(t)

	res := svc.CreateBook(context.Background(), books.CreateBookInput{Title: "Tehanu", AuthorID: testsupport.Ref(int64(999))})
	require.True(t, res.IsFailure())
	require.Equal(t, result.KindNotFound, res.FirstError().Kind)
	require.Equal(t, "authors.not_found", res.FirstError().Code)
}

func TestCreateBook_DuplicateTitle(t *testing.T) {
	svc, lib := newSQLiteService(t)
	ctx := context.Background()

	dup := svc.CreateBook(ctx, books.CreateBookInput{Title: "The Dispossessed", AuthorID: &lib.Authors[0].ID})
	require.True(t, dup.IsFailure())
	require.Equal(t, result.KindConflict, dup.FirstError().Kind)
	require.Equal(t, "books.duplicate_title", dup.FirstError().Code)

	anonymous := svc.CreateBook(ctx, books.CreateBookInput{Title: "Beowulf"})
	require.Equal(t, "books.duplicate_title", anonymous.FirstError().Code)

	otherAuthor := svc.CreateBook(ctx, books.CreateBookInput{Title: "The Dispossessed", AuthorID: &lib.Authors[1].ID})
	require.True(t, otherAuthor.IsSuccess(), "a different author may reuse a title")
}

func TestUpdateBook(t *testing.T) {
	svc, lib := newSQLiteService(t)
	ctx := context.Background()
	leGuin := &lib.Authors[0].ID

	same := svc.UpdateBook(ctx, lib.Books[0].ID, books.UpdateBookInput{Title: "The Dispossessed", AuthorID: leGuin})
	require.True(t, same.IsSuccess(), "keeping its own title is not a conflict")

	clash := svc.UpdateBook(ctx, lib.Books[0].ID, books.UpdateBookInput{Title: "A Wizard of Earthsea", AuthorID: leGuin})
	require.Equal(t, "books.duplicate_title", clash.FirstError().Code)

	missing := svc.UpdateBook(ctx, 999, books.UpdateBookInput{Title: "Tehanu"})
	require.Equal(t, result.KindNotFound, missing.FirstError().Kind)
	require.Equal(t, "books.not_found", missing.FirstError().Code)

	invalid := svc.UpdateBook(ctx, -1, books.UpdateBookInput{})
	require.Equal(t, []string{"book.id.min_greater_equal_than_required", "book.title.required"}, errorCodes(invalid.Errors()))
}

func TestDeleteBook(t *testing.T) {
	svc, lib := newSQLiteService(t)
	ctx := context.Background()

	require.True(t, svc.DeleteBook(ctx, lib.Books[4].ID).IsSuccess())

	again := svc.DeleteBook(ctx, lib.Books[4].ID)
	require.True(t, again.IsFailure())
	require.Equal(t, "books.not_found", again.FirstError().Code)

	require.Equal(t, []string{"book.id.required"}, errorCodes(svc.DeleteBook(ctx, 0).Errors()))
}

func TestSearch(t *testing.T) {
	svc, _ := newSQLiteService(t)
	ctx := context.Background()

	titles := func(res result.Result[[]books.BookModel]) []string {
		require.True(t, res.IsSuccess(), "search failed: %v", res.Err())
		out := make([]string, 0, len(res.Value()))
		for _, b := range res.Value() {
			out = append(out, b.Title)
		}
		return out
	}

	require.Equal(t, []string{"The Go Programming Language", "The Practice of Programming"},
		titles(svc.Search(ctx, books.BookSearch{AuthorLastName: "Pike"})))
	require.Equal(t, []string{"The Practice of Programming"},
		titles(svc.Search(ctx, books.BookSearch{Title: "Programming", Offset: 1})))
	require.Len(t, titles(svc.Search(ctx, books.BookSearch{Limit: 2})), 2)
	require.Empty(t, titles(svc.Search(ctx, books.BookSearch{Title: "Necronomicon"})))

	invalid := svc.Search(ctx, books.BookSearch{Limit: 500, Offset: -1})
	require.Equal(t, []string{"search.limit.max_less_equal_than_required", "search.offset.min_greater_equal_than_required"},
		errorCodes(invalid.Errors()))
}

func TestBooksQuery_IsLazyAndComposable(t *testing.T) {
	svc, _ := newSQLiteService(t)

	q := svc.BooksQuery("Author").OrderBy("title", false)
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)

	first, err := q.First(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A Wizard of Earthsea", first.Title)
	require.Equal(t, "Le Guin", first.Author.LastName)
}

func TestTelemetry_SpansAndCounters(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	svc, _ := newSQLiteService(t, books.WithTracerProvider(tp), books.WithMeterProvider(mp))
	ctx := context.Background()

	require.True(t, svc.GetBooks(ctx).IsSuccess())
	require.True(t, svc.GetBooks(ctx).IsSuccess())
	require.True(t, svc.GetBook(ctx, 999).IsFailure())

	ended := spans.Ended()
	require.Len(t, ended, 3)
	require.Equal(t, "books.GetBooks", ended[0].Name())
	require.Equal(t, codes.Unset, ended[0].Status().Code)

	notFound := ended[2]
	require.Equal(t, "books.GetBook", notFound.Name())
	require.Equal(t, codes.Error, notFound.Status().Code)
	require.Contains(t, notFound.Attributes(), attribute.String("error.code", "books.not_found"))
	require.Contains(t, notFound.Attributes(), attribute.String("outcome", "not_found"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "readthrough.books.requests" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value("operation")
				outcome, _ := dp.Attributes.Value("outcome")
				counts[op.AsString()+"/"+outcome.AsString()] += dp.Value
			}
		}
	}
	require.Equal(t, map[string]int64{
		"GetBooks/success":  2,
		"GetBook/not_found": 1,
	}, counts)
}
