// Package builtin embeds the pattern dictionary YAML via go:embed.
package builtin

import "embed"

//go:embed *.yaml
var builtinDictionary embed.FS

// FS returns the embedded filesystem containing the built-in dictionary.
func FS() embed.FS {
	return builtinDictionary
}
