// Package queue persists recordings, homily segments, and comparison results
// in SQLite and exposes helpers for driving the recording lifecycle.
//
// The Store manages schema initialization, stats queries, heartbeat tracking,
// stuck-recording recovery, and the comparison state that keeps deviation
// analysis idempotent: at most one ComparisonResult exists per unordered pair
// of recordings per weekend group, enforced by the table's primary key.
//
// The database is transient pipeline state rather than a long-term archive.
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
