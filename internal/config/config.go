// Package config implements TOML configuration loading, validation, and
// hot-reload for chunkrelay's server and client components.
package config

// Config is the top-level configuration structure for a chunkrelay server
// or CLI invocation. Every field has a safe default (see DefaultConfig) so
// a bare config file, or none at all, is always usable.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Limits  LimitsConfig  `toml:"limits"`
	Cleanup CleanupConfig `toml:"cleanup"`
	CORS    CORSConfig    `toml:"cors"`
	Client  ClientConfig  `toml:"client"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig controls the HTTP listener and I/O pool sizing.
type ServerConfig struct {
	ListenAddr           string `toml:"listen_addr"`
	IOPoolSize           int    `toml:"io_pool_size"`
	MaxConcurrentUploads int    `toml:"max_concurrent_uploads"`
	BandwidthLimit       string `toml:"bandwidth_limit"`
}

// StorageConfig controls where chunks and assembled files live on disk.
type StorageConfig struct {
	BaseDir          string `toml:"base_dir"`
	TempDirPrefix    string `toml:"temp_dir_prefix"`
	SafetyBufferSize string `toml:"safety_buffer_size"`
	MinFreeSpace     string `toml:"min_free_space"`
}

// LimitsConfig controls request-shape validation ceilings (spec §4.6).
type LimitsConfig struct {
	MaxChunkSize   string   `toml:"max_chunk_size"`
	MaxChunkCount  int      `toml:"max_chunk_count"`
	MaxFileSize    string   `toml:"max_file_size"`
	ExtensionAllow []string `toml:"extension_allow"`
	ExtensionBlock []string `toml:"extension_block"`
}

// CleanupConfig controls periodic removal of terminal-state sessions (spec §3).
type CleanupConfig struct {
	Enabled         bool   `toml:"enabled"`
	DelayHours      int    `toml:"delay_hours"`
	Interval        string `toml:"interval"`
	StalePartialAge string `toml:"stale_partial_age"`
}

// CORSConfig is opaque passthrough: chunkrelay's core never wires a CORS
// middleware itself (out of scope per spec.md §1), but carries the
// configuration shape an embedding web-framework layer would consume.
type CORSConfig struct {
	Origins     []string `toml:"origins"`
	Methods     []string `toml:"methods"`
	Headers     []string `toml:"headers"`
	Credentials bool     `toml:"credentials"`
	MaxAgeSec   int      `toml:"max_age_seconds"`
}

// ClientConfig controls the uploader's chunk pump, retry policy, and
// refresh-bridge persistence. The upload command reads ChunkSize,
// Concurrency, MaxAttempts and BandwidthLimit; RetryBaseDelay,
// RetryMaxDelay, ChunkTimeout and RefreshTTL are validated but not read,
// so the retry policy, pump and session manager use their own built-in
// values for those.
type ClientConfig struct {
	ChunkSize      string `toml:"chunk_size"`
	Concurrency    int    `toml:"concurrency"`
	MaxAttempts    int    `toml:"max_attempts"`
	RetryBaseDelay string `toml:"retry_base_delay"`
	RetryMaxDelay  string `toml:"retry_max_delay"`
	ChunkTimeout   string `toml:"chunk_timeout"`
	BandwidthLimit string `toml:"bandwidth_limit"`
	RefreshTTL     string `toml:"refresh_ttl"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
