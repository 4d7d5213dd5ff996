// Package appfs embeds the files the binaries need at runtime: database migrations and email templates.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
