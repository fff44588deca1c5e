package config

import (
	"flag"
	"os"
	"time"

	"github.com/obsync-io/obsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-o string   chunk store backend ("filesystem" or "s3")
//	-r string   chunk store root directory (filesystem backend)
//	-m int      maximum chunk size, bytes
//	-i int      realtime keepalive interval, seconds
//	-w string   comma-separated CORS allowed origins
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - The keepalive flag is accepted as an integer in seconds and then
//     converted to a time.Duration value.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-o", "-r", "-m", "-i", "-w", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.ChunkBackend, "o", config.ChunkBackend, "chunk store backend (filesystem|s3)")
	fs.StringVar(&config.ChunkDir, "r", config.ChunkDir, "chunk store root directory")
	fs.Int64Var(&config.MaxChunkBytes, "m", config.MaxChunkBytes, "max chunk size in bytes")

	keepaliveInterval := fs.Int("i", int(config.KeepaliveInterval.Seconds()), "keepalive interval (in seconds)")

	fs.StringVar(&config.CORSAllowedOrigins, "w", config.CORSAllowedOrigins, "CORS allowed origins, comma-separated")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.KeepaliveInterval = time.Duration(*keepaliveInterval) * time.Second
}
