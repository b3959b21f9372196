// Package config loads, normalizes, and validates Sightline configuration.
//
// Configuration lives in TOML and is decoded with go-toml/v2. Default supplies
// the tool options the desktop app shipped with, Load resolves the file
// location (user config, then ./sightline.toml), expands "~" paths, applies
// environment fallbacks, and validates the result. Save writes edits back so
// option changes persist between runs, and WriteSample writes the annotated
// template used by `sightline config init`.
//
// Components should accept a *Config rather than reading files or
// environment variables themselves.
package config
