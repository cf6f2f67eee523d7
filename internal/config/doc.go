// Package config loads, normalizes, and validates shuttle configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the CLI, scanner, and worker need: shared-store locations, workflow
// timing, retry ceilings, scanner filters, and external binary names.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
