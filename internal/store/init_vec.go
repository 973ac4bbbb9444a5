//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Registers the sqlite-vec extension for every sqlite3 connection when built
// with the sqlite_vec tag. Without the tag the store falls back to the
// in-process cosine scan; detectVecExtension picks the path at runtime.
func init() {
	vec.Auto()
}
