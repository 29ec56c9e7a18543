// Package cache provides the key-value store abstraction, value codecs and
// key fingerprinting shared by the query result cache, the entity point
// cache and the search page cache.
//
// # Overview
//
//   - Store: values with a TTL, string sets and prefix deletion. The
//     in-process store (sturdyc + xsync) and the Redis store live in
//     internal/cacheinfra and are selected with Config.Backend.
//   - Codec: JSON or msgpack encoding of cached values.
//   - Service: a Store plus a Codec and a default TTL, with the typed
//     read-through helper GetOrFetch.
//   - Fingerprint: lowercase sha1 hex of a canonical rendering of any Go
//     value, used for the hashed segment of cache keys.
//
// # Basic Usage
//
//	svc, err := cache.New(cache.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	book, err := cache.GetOrFetch(ctx, svc, "books:42", time.Minute, func(ctx context.Context) (Book, error) {
//		return repo.GetByID(ctx, "42")
//	})
//
// # Canonical Form
//
// Canonical renders maps with sorted keys and numbers without their Go
// type, so a filter decoded from JSON (float64) and the same filter built
// in code (int) fingerprint identically. Functions and channels render as
// their kind only.
//
// # Failures
//
// Store failures are wrapped with Unavailable (text code
// BACKING_SERVICE_UNAVAILABLE). Callers in this module log them and
// degrade to a cache miss; a miss itself is never an error.
package cache
