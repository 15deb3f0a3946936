package config

// Default values for configuration options — the fallback used whenever no
// config file is present, and the baseline that a config file's values are
// decoded on top of.
const (
	defaultListenAddr           = ":8080"
	defaultIOPoolSize           = 16
	defaultMaxConcurrentUploads = 10
	defaultBaseDir              = "./data/uploads"
	defaultTempDirPrefix        = "temp_"
	defaultSafetyBufferSize     = "50MiB"
	defaultMinFreeSpace         = "100MiB"
	defaultMaxChunkSize         = "100MiB"
	defaultMaxChunkCount        = 10_000
	defaultMaxFileSize          = "100GiB"
	defaultCleanupDelayHours    = 24
	defaultCleanupInterval      = "1h"
	defaultStalePartialAge      = "48h"
	defaultClientChunkSize      = "10MiB"
	defaultConcurrency          = 3
	defaultMaxAttempts          = 3
	defaultRetryBaseDelay       = "1s"
	defaultRetryMaxDelay        = "30s"
	defaultChunkTimeout         = "30s"
	defaultBandwidthLimit       = "0"
	defaultRefreshTTL           = "5m"
	defaultLogLevel             = "info"
	defaultLogFormat            = "text"
)

// defaultExtensionBlock mirrors the ceiling named in spec.md §4.6.
var defaultExtensionBlock = []string{"exe", "bat", "cmd", "scr", "com", "pif"}

// DefaultConfig returns a Config populated with every default value. It is
// both the starting point for TOML decoding (so unset keys keep their
// default) and the fallback used when no config file exists at all.
func DefaultConfig() *Config {
	return &Config{
		Server:  defaultServerConfig(),
		Storage: defaultStorageConfig(),
		Limits:  defaultLimitsConfig(),
		Cleanup: defaultCleanupConfig(),
		Client:  defaultClientConfig(),
		Logging: defaultLoggingConfig(),
	}
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:           defaultListenAddr,
		IOPoolSize:           defaultIOPoolSize,
		MaxConcurrentUploads: defaultMaxConcurrentUploads,
		BandwidthLimit:       defaultBandwidthLimit,
	}
}

func defaultStorageConfig() StorageConfig {
	return StorageConfig{
		BaseDir:          defaultBaseDir,
		TempDirPrefix:    defaultTempDirPrefix,
		SafetyBufferSize: defaultSafetyBufferSize,
		MinFreeSpace:     defaultMinFreeSpace,
	}
}

func defaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		MaxChunkSize:   defaultMaxChunkSize,
		MaxChunkCount:  defaultMaxChunkCount,
		MaxFileSize:    defaultMaxFileSize,
		ExtensionBlock: append([]string(nil), defaultExtensionBlock...),
	}
}

func defaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Enabled:         true,
		DelayHours:      defaultCleanupDelayHours,
		Interval:        defaultCleanupInterval,
		StalePartialAge: defaultStalePartialAge,
	}
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		ChunkSize:      defaultClientChunkSize,
		Concurrency:    defaultConcurrency,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
		RetryMaxDelay:  defaultRetryMaxDelay,
		ChunkTimeout:   defaultChunkTimeout,
		BandwidthLimit: defaultBandwidthLimit,
		RefreshTTL:     defaultRefreshTTL,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
	}
}
