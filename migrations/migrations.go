// Package migrations holds the Postgres schema of the till.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
