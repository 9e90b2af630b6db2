// Package builtin embeds the default rule source via go:embed.
package builtin

import "embed"

//go:embed *.yar
var builtinRules embed.FS

// FS returns the embedded filesystem containing the default rule source.
func FS() embed.FS {
	return builtinRules
}
