// Package format holds export format definitions and the registry that
// resolves them.
//
// A format is either a built-in template, constructed once at startup and
// read-only, or a user-authored CustomFormat persisted in a Store. Custom
// formats carry an ordered mapping of field, meta and static columns plus an
// optional "include all meta" flag; the Mapper turns them into concrete
// Columns against the current set of metadata keys.
//
// Column keys follow one rule everywhere:
//
//	field  -> the field name         (order_total)
//	meta   -> "meta:" + key          (meta:gift_wrap)
//	static -> the display name       (Channel)
//
// Stores:
//   - MemoryStore: tests and single-process use
//   - YAMLStore: one YAML file, reloaded by Watcher on external edits
package format
