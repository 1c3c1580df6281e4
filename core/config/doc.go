// Package config loads and aggregates the application configuration.
//
// Each core package declares its own partial Config struct with mapstructure
// and default tags; this package binds them into Viper, overlays a .env file
// when present, and maps environment variables onto nested keys
// (SERVER_PORT -> server.port).
package config
