package config

import (
	"encoding/json"
	"os"

	"github.com/obsync-io/obsync/internal/flagx"
	"github.com/obsync-io/obsync/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration, which accepts both string values such as "20s" and
// integer nanoseconds.
//
// The struct is an intermediate DTO: after unmarshalling, non-zero fields
// are copied into the runtime Config, so a partial file only overrides the
// keys it names.
type JsonConfig struct {
	EndpointAddr       string         `json:"endpoint_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	ChunkBackend       string         `json:"chunk_backend"`
	ChunkDir           string         `json:"chunk_dir"`
	MaxChunkBytes      int64          `json:"max_chunk_bytes"`
	KeepaliveInterval  timex.Duration `json:"keepalive_interval"`
	CORSAllowedOrigins string         `json:"cors_allowed_origins"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
}

// parseJson overlays configuration values from a JSON file onto config.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no file is loaded. An unreadable or malformed file
// panics: starting with half-applied configuration is worse than not
// starting.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.ChunkBackend != "" {
		config.ChunkBackend = c.ChunkBackend
	}
	if c.ChunkDir != "" {
		config.ChunkDir = c.ChunkDir
	}
	if c.MaxChunkBytes != 0 {
		config.MaxChunkBytes = c.MaxChunkBytes
	}
	if c.KeepaliveInterval.Duration != 0 {
		config.KeepaliveInterval = c.KeepaliveInterval.Duration
	}
	if c.CORSAllowedOrigins != "" {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
