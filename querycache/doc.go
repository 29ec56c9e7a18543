// Package querycache caches list query results and invalidates them by
// cluster signature.
//
// A ClusterSpec names the fields that partition an entity's queries, for
// example {"bookId"} for reviews. A query filtering on bookId = B1 is
// stored under
//
//	qcache:reviews:c:B1:<sha1 of the extra params>
//
// while one that does not pin bookId is stored under c:all. When a review
// of B1 changes, InvalidateCache deletes both the c:B1: and the c:all:
// prefixes. With N dimensions every combination of value and all is
// purged, 2^N prefixes in total, because a cached query may have filtered
// on any subset of the dimensions.
//
// Deletion scans by prefix and is not atomic: an entry written while the
// scan runs may survive until its TTL expires.
package querycache
