// Package config loads service configuration from YAML files and
// environment variables. A service embeds ServiceConfig in its own
// config struct, and LoadConfig resolves config.yml and .env files from
// standard locations, layering environment overrides on top.
package config
