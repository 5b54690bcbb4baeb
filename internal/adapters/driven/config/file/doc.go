// Package file loads and saves the indexsync TOML configuration.
//
// Values come from three layers, later ones winning: built-in defaults,
// the config file, and INDEXSYNC_* environment variables. Secrets are
// usually supplied through the environment.
package file
