// Package config loads, normalizes, and validates the TOML configuration
// that drives the ambo pipeline: directory layout, ingest naming
// conventions, boundary marker sets, comparison thresholds, notification
// settings, and daemon timing.
package config
