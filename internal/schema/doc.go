// Package schema defines the local-side canonical forms of every entity the
// coach keeps on device.
//
// Field names in JSON tags are the canonical names used throughout the
// module. The remote adapters translate them to their own storage schema; no
// other package should depend on remote column names.
//
// Goals and tiny goals carry locally-assigned integer ids. Daily tasks and
// quotes are keyed by calendar date (YYYY-MM-DD) with upsert semantics.
// Recurring tasks carry locally generated string ids. Preferences are a
// singleton.
package schema
