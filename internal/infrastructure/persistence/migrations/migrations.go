// Package migrations embeds the failure journal schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
