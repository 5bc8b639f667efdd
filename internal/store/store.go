// Package store applies generated statement scripts directly to a live Open
// WebUI database, for runs that skip the intermediate .sql file.
package store

import "context"

// Store executes a statement script against a destination database. The
// scripts are idempotent by construction (delete-then-insert / upsert), so
// Apply may be called repeatedly with the same script.
type Store interface {
	Apply(ctx context.Context, script string) error
	Close() error
}
