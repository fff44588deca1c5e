package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays configuration values from environment variables. The
// variable names mirror the JSON keys in upper case; .env files are loaded
// into the process environment by main before LoadConfig runs.
//
// Malformed numeric or duration values panic for the same reason a
// malformed JSON file does.
func parseEnv(config *Config) {
	setString := func(name string, target *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*target = v
		}
	}

	setString("ENDPOINT_ADDR", &config.EndpointAddr)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("SECRET_KEY", &config.SecretKey)
	setString("CHUNK_BACKEND", &config.ChunkBackend)
	setString("CHUNK_DIR", &config.ChunkDir)
	setString("CORS_ALLOWED_ORIGINS", &config.CORSAllowedOrigins)
	setString("S3_ROOT_USER", &config.S3RootUser)
	setString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	if v, ok := os.LookupEnv("MAX_CHUNK_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.MaxChunkBytes = n
	}

	if v, ok := os.LookupEnv("KEEPALIVE_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.KeepaliveInterval = d
	}
}
