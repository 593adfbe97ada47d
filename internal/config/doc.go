// Package config loads and validates the kasikai daemon configuration.
//
// Configuration is TOML with a built-in default for every field, so the
// daemon runs without a config file. Paths are tilde-expanded and made
// absolute during load. The room and CSV column configuration lives in a
// separate JSON document handled by the roomcfg package.
package config
