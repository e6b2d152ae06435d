// Package store is the durability engine and in-memory map that together
// guarantee every acknowledged mutation survives an abrupt process
// termination. It owns two files per data directory: an append-only WAL
// and a single checkpoint that lets recovery skip replaying history that
// predates it.
package store

import "encoding/json"

// Value is an opaque, JSON-compatible datum. The store never inspects or
// canonicalizes it — it is stored and returned exactly as received, down to
// field order and numeric formatting, which is why it is backed by
// json.RawMessage rather than decoded into map[string]any/[]any/etc.
type Value = json.RawMessage

// Null is the canonical encoding of a JSON null.
var Null = Value("null")

// Clone returns a copy of v so callers holding a stored Value cannot mutate
// the store's backing bytes through it.
func Clone(v Value) Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}
