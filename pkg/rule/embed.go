package rule

import "embed"

// builtinPresetsFS embeds the named advanced rule-sets shipped with the binary.
//
//go:embed presets/*.yml
var builtinPresetsFS embed.FS
