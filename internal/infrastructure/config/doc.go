// Package config loads and validates the ZapTap link core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// ZAPTAP_* environment variable overrides. Load returns an error rather
// than a partially-valid configuration.
package config
