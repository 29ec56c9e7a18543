// Package searchindex keeps a search index eventually consistent with the
// authoritative store.
//
// A Synchronizer owns one index. Writes refresh synchronously so they are
// visible to the next read, then drop the index's page cache
// (elasticCache:<index>:) and the query result cache of the entity.
// Reads compile filter objects with the search backend of the query
// package.
//
// The index is a secondary read path: failures are logged and reads
// degrade to empty results instead of failing the caller.
package searchindex
