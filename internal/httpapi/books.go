// Package httpapi exposes the book service over gin.
package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-readthrough/books"
	"github.com/goliatone/go-readthrough/httpresult"
	"github.com/goliatone/go-readthrough/resilience"
	"github.com/goliatone/go-readthrough/result"
)

// BookService is the part of books.Service the handlers call.
type BookService interface {
	GetBooks(ctx context.Context) result.Result[[]books.BookModel]
	Search(ctx context.Context, search books.BookSearch) result.Result[[]books.BookModel]
	GetBook(ctx context.Context, id int64) result.Result[books.BookModel]
	CreateBook(ctx context.Context, in books.CreateBookInput) result.Result[books.BookModel]
	UpdateBook(ctx context.Context, id int64, in books.UpdateBookInput) result.Result[books.BookModel]
	DeleteBook(ctx context.Context, id int64) result.Void
}

var _ BookService = (*books.Service)(nil)

type BookHandler struct {
	service BookService
	retry   resilience.Policy
	logger  resilience.Logger
}

// NewBookHandler serves service. Listing reads are retried under retry.
func NewBookHandler(service BookService, retry resilience.Policy, logger resilience.Logger) *BookHandler {
	return &BookHandler{service: service, retry: retry, logger: logger}
}

// Register mounts the book routes on r.
func (h *BookHandler) Register(r gin.IRouter) {
	r.GET("/books", h.List)
	r.GET("/books/search", h.Search)
	r.GET("/books/:id", h.Get)
	r.POST("/books", h.Create)
	r.PUT("/books/:id", h.Update)
	r.DELETE("/books/:id", h.Delete)
}

func (h *BookHandler) List(c *gin.Context) {
	var opts []resilience.Option
	if h.logger != nil {
		opts = append(opts, resilience.WithLogger(h.logger))
	}
	httpresult.Respond(c, resilience.Retry(c.Request.Context(), h.retry, h.service.GetBooks, opts...))
}

func (h *BookHandler) Search(c *gin.Context) {
	search := books.BookSearch{
		Title:          c.Query("title"),
		AuthorLastName: c.Query("author"),
	}
	var errs []result.Error
	for name, dst := range map[string]*int{"limit": &search.Limit, "offset": &search.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, result.Validation("search."+name+".invalid", name+": must be an integer"))
			continue
		}
		*dst = n
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Code < errs[j].Code })
		httpresult.Fail(c, errs...)
		return
	}
	httpresult.Respond(c, h.service.Search(c.Request.Context(), search))
}

func (h *BookHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	httpresult.Respond(c, h.service.GetBook(c.Request.Context(), id))
}

func (h *BookHandler) Create(c *gin.Context) {
	var in books.CreateBookInput
	if !bindJSON(c, &in) {
		return
	}
	httpresult.RespondCreated(c, h.service.CreateBook(c.Request.Context(), in))
}

func (h *BookHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in books.UpdateBookInput
	if !bindJSON(c, &in) {
		return
	}
	httpresult.Respond(c, h.service.UpdateBook(c.Request.Context(), id, in))
}

func (h *BookHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	httpresult.RespondVoid(c, h.service.DeleteBook(c.Request.Context(), id))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpresult.Fail(c, result.Validation("book.id.invalid", "id: must be an integer"))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpresult.Fail(c, result.Validation("request.body.invalid", "request body must be a JSON book"))
		return false
	}
	return true
}

// NewRouter returns a gin engine with recovery and the book routes under /api.
func NewRouter(h *BookHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	h.Register(r.Group("/api"))
	return r
}
