// Package config loads, normalizes, and validates media index configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// TMDB_API_KEY, DATABASE_URL, and REDIS_URL. The Config type centralizes
// every knob the daemon and CLI need, so external service credentials and
// storage locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
