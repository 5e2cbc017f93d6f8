// Package store is the storage engine boundary: a SQLite database reached
// only through Executor, Tx and Conn.
//
// Nothing above this package touches database/sql directly. Every engine
// error leaving the package is a fault.Error with code
// STORAGE_ENGINE_FAILURE that keeps the SQLite result code.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (configurable, 5 seconds by default)
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: SQLite has a single writer
//
// # Modes
//
// ModeNormal operates on the file in place. ModeSandbox copies the file with
// VACUUM INTO into a temporary directory and operates on the copy; the copy
// is removed on Close and the persistent file is never written.
package store
