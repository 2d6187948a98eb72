// Package migrations embeds the goose migrations shared by the sqlite and
// postgres backends.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
