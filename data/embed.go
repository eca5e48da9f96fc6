// Package data embeds the assets the process ships with.
package data

import "embed"

//go:embed defaults.yaml
var DefaultsYAML []byte

// FS exposes the embedded tree for callers that want path access.
//
//go:embed defaults.yaml
var FS embed.FS
