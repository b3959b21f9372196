// Package history persists batch runs and their per-file outcomes in a
// SQLite database under the state directory.
//
// Store implements batch.Recorder so the coordinator can write through it
// directly. Writes retry briefly on SQLITE_BUSY because a second process may
// be reading the same database. AcquireLock guards against two batches
// sharing one state directory.
package history
