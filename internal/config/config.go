// Package config loads loader settings from environment variables.
//
// Every field is bound to a variable through struct tags:
//
//	env:"NAME"       primary variable
//	envAlt:"NAME"    fallback variable
//	default:"value"  used when neither is set
//	required:"true"  fail when neither is set
//
// Load validates the result and reports every problem at once.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Workers  WorkerConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout bounds reading the whole request, upload included (default: 10m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"10m"`

	// WriteTimeout bounds writing the response (default: 0, none)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running uploads (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for a request (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are believed (comma-separated, default: none)
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// DATABASE_URL and DB_URL are both accepted.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of pooled connections (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the number of connections kept open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds ingestion settings.
type UploadConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 1GiB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"1073741824"`

	// MaxConcurrent is the number of uploads running the pipeline at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long an upload waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// ChunkSize is the number of rows per load unit (default: 100000)
	ChunkSize int `env:"UPLOAD_CHUNK_SIZE" default:"100000"`

	// ColumnLength is the VARCHAR width of created columns (default: 255)
	ColumnLength int `env:"UPLOAD_COLUMN_LENGTH" default:"255"`

	// LoadMethod is batch (pipelined INSERTs) or copy (COPY FROM) (default: batch)
	LoadMethod string `env:"UPLOAD_LOAD_METHOD" default:"batch"`

	// CancelOnFailure stops an upload's remaining chunks after the first failure (default: false)
	CancelOnFailure bool `env:"UPLOAD_CANCEL_ON_FAILURE" default:"false"`

	// XLSXXMLSizeLimit is the worksheet size in bytes above which a workbook
	// is streamed from a temp file rather than memory (default: 16MiB)
	XLSXXMLSizeLimit int64 `env:"UPLOAD_XLSX_XML_SIZE_LIMIT" default:"16777216"`
}

// WorkerConfig sizes the shared load worker pool. Zero means derive from
// the CPU count.
type WorkerConfig struct {
	Core      int           `env:"WORKER_CORE" default:"0"`
	Max       int           `env:"WORKER_MAX" default:"0"`
	QueueSize int           `env:"WORKER_QUEUE_SIZE" default:"100"`
	KeepAlive time.Duration `env:"WORKER_KEEP_ALIVE" default:"60s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
