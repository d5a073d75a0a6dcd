// Package config loads and validates the client configuration from a YAML
// file. Every section carries its own Validate method and duration accessors
// for fields stored as plain seconds.
package config
