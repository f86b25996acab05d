// Package config loads process configuration from the environment and the
// trusted-extensions whitelist from YAML.
package config

import "os"

// Config holds process configuration.
type Config struct {
	LogLevel       string
	ArchivePath    string
	PostgresURL    string
	ExtensionsFile string
	OTLPEndpoint   string
	TelemetryOn    bool
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	archivePath := os.Getenv("COVENANT_ARCHIVE")
	if archivePath == "" {
		archivePath = "covenant.db"
	}

	extensionsFile := os.Getenv("COVENANT_EXTENSIONS")
	if extensionsFile == "" {
		extensionsFile = "extensions.yaml"
	}

	otlpEndpoint := os.Getenv("OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	return &Config{
		LogLevel:       logLevel,
		ArchivePath:    archivePath,
		PostgresURL:    os.Getenv("COVENANT_POSTGRES_URL"),
		ExtensionsFile: extensionsFile,
		OTLPEndpoint:   otlpEndpoint,
		TelemetryOn:    os.Getenv("COVENANT_TELEMETRY") == "true",
	}
}
