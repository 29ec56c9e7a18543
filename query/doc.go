// Package query compiles a generic filter object into the native query of a
// relational store, a document store or a search index.
//
// # Overview
//
// Compilation is a two stage pipeline. Parse turns the filter object into
// an expression tree (Expr), and Emit renders that tree through a Backend.
// Keeping the two apart means a new store only needs a Backend
// implementation:
//
//	[filter object] -> Parse -> [Expr] -> Emit -> search.Query
//	                                           -> document.Filter
//	                                           -> relational.Clause
//
// # Filter Grammar
//
// A filter is a plain nested map:
//
//	{"status": "active"}                              implicit equality
//	{"status": {"ne": "archived"}}                    operator object
//	{"status": "active", "rating": {"gte": 4}}        implicit and
//	{"or": [{"bookId": "B1"}, {"bookId": "B2"}]}      logical operator
//	{"not": {"email": {"eq": "null"}}}                negation
//
// Operator objects must have exactly one key; anything else is a compile
// error. Operators a backend does not register fall back to equality so an
// unknown operator still constrains the query.
//
// # Negation
//
// Negative operators (ne, nin, nlike, nbetween, ...) never reach a backend
// as such. Emit compiles the positive form and asks the backend to negate
// it, which keeps must and must_not scoping correct in the search backend.
// Null checks are inverted instead of wrapped.
//
// # Errors
//
// Structural errors are reported as go-errors values with the
// FILTER_COMPILE text code and the offending path in the metadata. Use
// IsCompileError to detect them.
package query
