// Package database manages the SQLite store used by the ZapTap link core.
//
// It owns connection lifecycle (WAL mode, busy timeout, single-writer
// pool), embedded schema migrations, and health checks. Domain packages
// receive the underlying *sql.DB and own their own queries.
package database
