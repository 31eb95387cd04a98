// Package migrations embeds the SQL migrations for the Postgres document
// store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
