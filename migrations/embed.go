// Package migrations embeds the SQL schema so both commands can apply it
// without depending on the working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in name order.
//
//go:embed *.sql
var FS embed.FS
