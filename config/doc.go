// Package config loads service configuration with Viper.
//
// LoadConfig reads config.yml from the conventional locations (or an explicit
// path), loads a .env file through godotenv and lets environment variables
// override file values. Nested keys are matched by splitting variable names
// at underscores, optionally after stripping a prefix:
//
//	RUNEMASTER_ENGINE_MAX_PARALLEL=4  ->  engine.max_parallel
package config
