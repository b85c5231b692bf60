// Package appfs embeds the files the binaries need at runtime: SQL migrations, email templates,
// the common passwords list and the universities seed.
package appfs

import "embed"

//go:embed migrations all:assets seed
var FS embed.FS
