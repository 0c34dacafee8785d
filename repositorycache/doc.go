// Package repositorycache decorates a repository.Repository with read-through caching.
//
// # Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	cached := repositorycache.New(books.NewBookRepository(db), svc, cache.NewDefaultKeySerializer())
//
//	book, err := cached.GetByID(ctx, 7, "Author")
//
// # Cached vs pass-through operations
//
// GetByID, GetAll and Find go through the cache. Concurrent misses on the same
// key share a single call to the wrapped repository, and failed loads are not
// stored. GetByID caches absence too, so repeated lookups of a missing id do not
// reach the store. Returned entities and slices are copies; entities holding
// pointers implement Cloner so nothing they reference is shared with the cache.
//
// Add, AddRange, Update and Delete always reach the wrapped repository. Query
// returns the wrapped repository's handle and is never cached.
//
// # Keys
//
// Keys have the form
//
//	<namespace>::<Method>::<arg>::<arg>
//
// The namespace defaults to the snake_cased entity type name ("book" for
// books.Book). For example:
//
//	book::GetByID::7::["Author"]
//	book::GetAll::[]
//	book::Find::Filter{Column:"title",Op:"contains",Value:"go"}::[]
//
// # Invalidation
//
// Every key the decorator reads through is recorded in a registry. A successful
// write drops the registered keys it can affect:
//
//   - Add, AddRange, Update and Delete drop the GetByID keys of the ids they
//     touched, including cached absence, plus every GetAll and Find key
//
// No-op writes (zero rows updated, nothing deleted) leave the cache untouched.
// When the cache rejects an invalidation the failure is logged and the keys stay
// registered, so the next write retries them.
//
// The registry is per process. Deployments sharing a distributed cache tier
// across instances should rely on TTLs for entries written by other processes.
package repositorycache
