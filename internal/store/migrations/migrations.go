// Package migrations embeds the versioned schema for the per-user cache.
// Every statement is idempotent so a freshly created store and one adapted
// from the legacy layout converge to identical structure.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
