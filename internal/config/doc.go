// Package config loads, normalizes, and validates farewire configuration.
//
// Configuration comes from three layers, later layers winning: compiled
// defaults, a TOML file (farewire.toml in the working directory or
// ~/.config/farewire/config.toml), and environment variables. A .env file in
// the working directory is loaded into the environment first, matching the
// scheduled-runner deployments where secrets arrive as environment variables
// rather than files.
package config
