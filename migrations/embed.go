// Package migrations embeds the SQL schema of the delivery audit database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
