// Package job runs exports as persisted, chunked, resumable jobs.
//
// A job moves queued -> processing -> completed or failed. Its transfer
// status moves independently once the export is complete. Each Manager.Tick
// claims the job in the Store, truncates the output file to the committed
// byte offset, appends one chunk of rows and commits the new cursor and
// offset. A tick that dies between append and commit therefore never
// duplicates rows, and a tick that loses the claim returns
// export.ErrJobLocked without touching the file.
//
// Deleting an unfinished job requests cancellation; the job is purged
// (record and file) by whoever next holds its claim. RemoveExpiredExports
// sweeps jobs older than the retention window.
//
// Stores: MemoryStore, SQLiteStore (mattn/go-sqlite3). Queues: MemoryQueue,
// RedisQueue (go-redis, LMOVE). Worker drains a queue with an errgroup.
package job
