// Package config handles dashboard configuration loading and validation.
//
// Configuration is read from a YAML file and validated using struct tags.
// Defaults fill every field the file leaves empty, so an absent file plus
// command-line flags is a complete configuration.
package config
