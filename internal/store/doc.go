// Package store provides SQLite-backed storage for named pipelines and
// schemas.
//
// Pipelines and schemas are stored in their canonical JSON encoding together
// with their content hash, so a stored document can be compared byte for
// byte with a freshly compiled one. Loading always goes back through the
// codec; a row that no longer decodes is reported as an error rather than
// returned half-built.
//
// # Ordering
//
// Every write takes the next value of a logical clock (seq) shared by both
// tables. Listings are ordered by name, ties never occur because names are
// unique.
//
// # Connections
//
// Open passes its pragmas in the go-sqlite3 DSN: WAL journaling,
// synchronous=NORMAL, a five second busy timeout and immediate
// transactions. The pool holds one connection, so writes are serialized.
//
// # Migrations
//
// schema.sql creates the version 0 tables. Later changes are entries in
// the migrations list, each applied in its own transaction together with
// the PRAGMA user_version bump.
package store
