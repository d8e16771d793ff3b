// Package migrations embeds the Sync Service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
