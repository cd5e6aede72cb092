// Package configs embeds the user configuration template
// (config.example.yaml, a sample ~/.config/trackerd/config.yaml) and the
// default ontology description files.
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config.NewConfig())
//  2. User config (~/.config/trackerd/config.yaml)
//  3. Environment variables (TRACKERD_*)
package configs

import _ "embed"

// ConfigTemplate holds the contents of config.example.yaml. No command
// writes it to disk; without a user config file, config.Load uses the
// built-in defaults.
//
//go:embed config.example.yaml
var ConfigTemplate string
