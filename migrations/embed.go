// Package migrations holds the PostgreSQL schema as numbered golang-migrate files.
package migrations

import "embed"

// Files is every up and down script, compiled into the binary
//
//go:embed *.sql
var Files embed.FS
