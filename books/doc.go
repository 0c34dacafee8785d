// Package books is the sample domain served by the read-through layer.
//
// Service.GetBooks lists every book with its author through a cache-aside entry
// (DefaultCacheKey). Writes go straight to the repositories and drop that entry
// once they succeed. Every operation returns a result.Result; store errors and
// panics become Unexpected failures, never Go errors.
package books
