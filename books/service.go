package books

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/goliatone/go-readthrough/cache"
	"github.com/goliatone/go-readthrough/internal/logger"
	"github.com/goliatone/go-readthrough/repository"
	"github.com/goliatone/go-readthrough/result"
)

// DefaultCacheKey is the cache entry holding the full book listing.
const DefaultCacheKey = "books-all"

const redactedMessage = "an unexpected error occurred"

// Logger is the subset of internal/logger.Logger the service writes to.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithCacheKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.cacheKey = key
		}
	}
}

// WithRedactErrors replaces the message of Unexpected failures with a generic
// text and an incident id. The raw error is only logged.
func WithRedactErrors(redact bool) Option {
	return func(s *Service) {
		s.redact = redact
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// Service serves book read models through a cache-aside listing and validates writes.
// Every operation returns a Result; errors and panics never escape.
type Service struct {
	books   BookRepository
	authors AuthorRepository
	cache   cache.Service[[]BookModel]

	logger         Logger
	cacheKey       string
	redact         bool
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	telemetry      telemetry
}

func NewService(books BookRepository, authors AuthorRepository, c cache.Service[[]BookModel], opts ...Option) *Service {
	s := &Service{
		books:    books,
		authors:  authors,
		cache:    c,
		logger:   logger.Nop(),
		cacheKey: DefaultCacheKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracerProvider == nil {
		s.tracerProvider = tracenoop.NewTracerProvider()
	}
	if s.meterProvider == nil {
		s.meterProvider = metricnoop.NewMeterProvider()
	}
	s.telemetry = newTelemetry(s.tracerProvider, s.meterProvider)
	return s
}

// CacheKey returns the key of the cached listing.
func (s *Service) CacheKey() string {
	return s.cacheKey
}

// GetBooks returns every book with its author. The listing is served from cache
// and concurrent misses share a single load. The slice is empty, never nil, when
// there are no books.
func (s *Service) GetBooks(ctx context.Context) (res result.Result[[]BookModel]) {
	ctx, end := s.telemetry.start(ctx, "GetBooks")
	defer func() { end(failures(res)) }()
	defer s.recoverInto(ctx, "books.get_all.failed", func(e result.Error) { res = result.Err[[]BookModel](e) })

	models, err := s.cache.GetOrFetch(ctx, s.cacheKey, s.loadBooks)
	if err != nil {
		return result.Err[[]BookModel](s.unexpected(ctx, "books.get_all.failed", err))
	}
	return result.Ok(cloneModels(models))
}

// loadBooks runs on a cache miss, possibly on behalf of other waiters.
func (s *Service) loadBooks(ctx context.Context) (models []BookModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			models, err = nil, fmt.Errorf("books: load panicked: %v", r)
		}
	}()

	rows, err := s.books.GetAll(ctx, "Author")
	if err != nil {
		return nil, err
	}
	return ToModels(rows), nil
}

// BooksQuery returns a lazy, uncached query over books for consumers that
// compose their own filters.
func (s *Service) BooksQuery(include ...string) repository.Query[Book] {
	return s.books.Query(include...)
}

// Search lists books matching search, bypassing the cache.
func (s *Service) Search(ctx context.Context, search BookSearch) (res result.Result[[]BookModel]) {
	ctx, end := s.telemetry.start(ctx, "Search")
	defer func() { end(failures(res)) }()
	defer s.recoverInto(ctx, "books.search.failed", func(e result.Error) { res = result.Err[[]BookModel](e) })

	if errs, ok := validationErrors("search", search.Validate()); ok {
		return result.Errs[[]BookModel](errs...)
	}

	q := s.books.Query("Author")
	if search.Title != "" {
		q = q.Where(repository.Contains("title", search.Title))
	}
	if search.AuthorLastName != "" {
		q = q.Where(repository.Eq("author.last_name", search.AuthorLastName))
	}
	rows, err := q.Limit(search.Limit).Offset(search.Offset).All(ctx)
	if err != nil {
		return result.Err[[]BookModel](s.unexpected(ctx, "books.search.failed", err))
	}
	return result.Ok(ToModels(rows))
}

// GetBook returns a single book with its author.
func (s *Service) GetBook(ctx context.Context, id int64) (res result.Result[BookModel]) {
	ctx, end := s.telemetry.start(ctx, "GetBook")
	defer func() { end(failures(res)) }()
	defer s.recoverInto(ctx, "books.get.failed", func(e result.Error) { res = result.Err[BookModel](e) })

	if errs, ok := validationErrors("book", validateID("id", id)); ok {
		return result.Errs[BookModel](errs...)
	}

	book, err := s.books.GetByID(ctx, id, "Author")
	if err != nil {
		return result.Err[BookModel](s.unexpected(ctx, "books.get.failed", err))
	}
	if book == nil {
		return result.Err[BookModel](bookNotFound(id))
	}
	return result.Ok(book.ToModel())
}

// CreateBook validates in, checks the author exists and the author has no
// book with the same title, then stores the book.
func (s *Service) CreateBook(ctx context.Context, in CreateBookInput) (res result.Result[BookModel]) {
	ctx, end := s.telemetry.start(ctx, "CreateBook")
	defer func() { end(failures(res)) }()
	defer s.recoverInto(ctx, "books.create.failed", func(e result.Error) { res = result.Err[BookModel](e) })

	in = in.normalize()
	if errs, ok := validationErrors("book", in.Validate()); ok {
		return result.Errs[BookModel](errs...)
	}

	author, failure := s.checkWrite(ctx, 0, in)
	if failure != nil {
		return result.Err[BookModel](*failure)
	}

	book := Book{Title: in.Title, AuthorID: in.AuthorID}
	id, err := s.books.Add(ctx, book)
	if err != nil {
		return result.Err[BookModel](s.unexpected(ctx, "books.create.failed", err))
	}
	book.ID = id
	book.Author = author

	s.invalidate(ctx, "CreateBook")
	return result.Ok(book.ToModel())
}

// UpdateBook replaces the title and author of book id.
func (s *Service) UpdateBook(ctx context.Context, id int64, in UpdateBookInput) (res result.Result[BookModel]) {
	ctx, end := s.telemetry.start(ctx, "UpdateBook")
	defer func() { end(failures(res)) }()
	defer s.recoverInto(ctx, "books.update.failed", func(e result.Error) { res = result.Err[BookModel](e) })

	in = in.normalize()
	var errs []result.Error
	if idErrs, ok := validationErrors("book", validateID("id", id)); ok {
		errs = append(errs, idErrs...)
	}
	if inErrs, ok := validationErrors("book", in.Validate()); ok {
		errs = append(errs, inErrs...)
	}
	if len(errs) > 0 {
		return result.Errs[BookModel](errs...)
	}

	author, failure := s.checkWrite(ctx, id, in)
	if failure != nil {
		return result.Err[BookModel](*failure)
	}

	book := Book{ID: id, Title: in.Title, AuthorID: in.AuthorID}
	affected, err := s.books.Update(ctx, book)
	if err != nil {
		return result.Err[BookModel](s.unexpected(ctx, "books.update.failed", err))
	}
	if affected == 0 {
		return result.Err[BookModel](bookNotFound(id))
	}
	book.Author = author

	s.invalidate(ctx, "UpdateBook")
	return result.Ok(book.ToModel())
}

// DeleteBook removes book id.
func (s *Service) DeleteBook(ctx context.Context, id int64) (res result.Void) {
	ctx, end := s.telemetry.start(ctx, "DeleteBook")
	defer func() { end(voidFailures(res)) }()
	defer s.recoverInto(ctx, "books.delete.failed", func(e result.Error) { res = result.Failure(e) })

	if errs, ok := validationErrors("book", validateID("id", id)); ok {
		return result.Failure(errs...)
	}

	deleted, err := s.books.Delete(ctx, id)
	if err != nil {
		return result.Failure(s.unexpected(ctx, "books.delete.failed", err))
	}
	if !deleted {
		return result.Failure(bookNotFound(id))
	}

	s.invalidate(ctx, "DeleteBook")
	return result.Success()
}

// checkWrite loads the referenced author and rejects a title the author already
// uses on another book. selfID is excluded from the duplicate check.
func (s *Service) checkWrite(ctx context.Context, selfID int64, in BookInput) (*Author, *result.Error) {
	var author *Author
	sameAuthor := repository.IsNull("author_id")

	if in.AuthorID != nil {
		found, err := s.authors.GetByID(ctx, *in.AuthorID)
		if err != nil {
			e := s.unexpected(ctx, "books.write.failed", err)
			return nil, &e
		}
		if found == nil {
			e := result.NotFound("authors.not_found", fmt.Sprintf("author %d does not exist", *in.AuthorID))
			return nil, &e
		}
		author = found
		sameAuthor = repository.Eq("author_id", *in.AuthorID)
	}

	filter := repository.And(repository.Eq("title", in.Title), sameAuthor)
	if selfID > 0 {
		filter = repository.And(filter, repository.Ne("id", selfID))
	}
	n, err := s.books.Query().Where(filter).Count(ctx)
	if err != nil {
		e := s.unexpected(ctx, "books.write.failed", err)
		return nil, &e
	}
	if n > 0 {
		e := result.Conflict("books.duplicate_title", fmt.Sprintf("a book titled %q already exists for this author", in.Title))
		return nil, &e
	}
	return author, nil
}

// invalidate drops the cached listing after a successful write. A listing load
// that started before the write may still store the previous snapshot until TTL.
func (s *Service) invalidate(ctx context.Context, operation string) {
	if err := s.cache.Delete(ctx, s.cacheKey); err != nil {
		s.logger.Warn("books: cache invalidation failed", "operation", operation, "key", s.cacheKey, "error", err)
	}
}

// unexpected logs err under a fresh incident id and returns the failure shown to callers.
func (s *Service) unexpected(ctx context.Context, code string, err error) result.Error {
	incident := uuid.NewString()
	kv := []any{"code", code, "incident", incident, "error", err}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		kv = append(kv, "trace_id", sc.TraceID().String())
	}
	s.logger.Error("books: unexpected failure", kv...)

	if s.redact {
		return result.Unexpected(code, fmt.Sprintf("%s (incident %s)", redactedMessage, incident))
	}
	return result.Unexpected(code, err.Error())
}

// recoverInto converts a panic in the calling operation into an Unexpected failure.
func (s *Service) recoverInto(ctx context.Context, code string, set func(result.Error)) {
	if r := recover(); r != nil {
		set(s.unexpected(ctx, code, fmt.Errorf("panic: %v", r)))
	}
}

func bookNotFound(id int64) result.Error {
	return result.NotFound("books.not_found", fmt.Sprintf("book %d does not exist", id))
}
