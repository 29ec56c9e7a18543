// Package entitycache caches single entities by id and maintains secondary
// index sets so entities can be looked up by non-identifier fields.
//
// Keys:
//
//	ecache:<entity>:<id>                  the encoded entity
//	ecache:<entity>-by-<field>:<value>    ids having field = value
//	ecache:entityKeys:<entity>:<id>       index keys that list id
//
// The reverse registry lets DelEntityFromCache remove an id from every
// index set without knowing the entity's previous field values.
package entitycache
