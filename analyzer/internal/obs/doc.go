// Package obs defines the Observation record and its line-delimited JSON
// wire format.
//
// observation.go holds the Observation type and the time layout used on the
// wire ("2006-01-02T15:04:05", UTC, optional trailing "Z" on read).
//
// codec.go provides Encode (one record per line, value omitted when absent)
// and Reader, a lazy forward-only decoder. Any malformed line aborts the read
// with an error matching ErrMalformedRecord; there is no skip-and-continue.
//
// writer.go provides Writer, which groups records into observation sets:
// Begin assigns a fresh set id, Set attaches set-level metadata, Observe
// stamps and writes records, Commit flushes and emits the set metadata.
//
// metadata.go merges the metadata of several input sets.
package obs
