// Package records provides export.RecordStore implementations.
//
// MemoryStore keeps records in maps and can simulate an unreachable store
// with SetFailure. SQLiteStore keeps records as JSON documents in SQLite and
// discovers metadata keys with json_each. Both synthesize guest customer
// identifiers from orders placed without a customer account, one per
// distinct billing email, and both record the set-once exported flag in a
// side table keyed by the encoded identifier.
package records
