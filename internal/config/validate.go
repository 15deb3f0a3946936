package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation range constants.
const (
	minIOPoolSize        = 1
	maxIOPoolSize        = 1024
	minConcurrentUploads = 1
	maxConcurrentUploads = 10_000
	minClientConcurrency = 1
	maxClientConcurrency = 64
	minMaxAttempts       = 1
	maxMaxAttempts       = 20
	minChunkCount        = 1
	minDelayHours        = 0
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so a bad
// config file reports its full set of problems in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateCleanup(&cfg.Cleanup)...)
	errs = append(errs, validateClient(&cfg.Client)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if s.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr: must not be empty"))
	}

	if s.IOPoolSize < minIOPoolSize || s.IOPoolSize > maxIOPoolSize {
		errs = append(errs, fmt.Errorf("server.io_pool_size: must be between %d and %d, got %d",
			minIOPoolSize, maxIOPoolSize, s.IOPoolSize))
	}

	if s.MaxConcurrentUploads < minConcurrentUploads || s.MaxConcurrentUploads > maxConcurrentUploads {
		errs = append(errs, fmt.Errorf("server.max_concurrent_uploads: must be between %d and %d, got %d",
			minConcurrentUploads, maxConcurrentUploads, s.MaxConcurrentUploads))
	}

	if s.BandwidthLimit != "0" && s.BandwidthLimit != "" {
		limit := strings.TrimSuffix(strings.ToLower(s.BandwidthLimit), "/s")
		if _, err := ParseSize(limit); err != nil {
			errs = append(errs, fmt.Errorf("server.bandwidth_limit: %w", err))
		}
	}

	return errs
}

func validateStorage(s *StorageConfig) []error {
	var errs []error

	if s.BaseDir == "" {
		errs = append(errs, errors.New("storage.base_dir: must not be empty"))
	}

	if s.TempDirPrefix == "" {
		errs = append(errs, errors.New("storage.temp_dir_prefix: must not be empty"))
	}

	if _, err := ParseSize(s.SafetyBufferSize); err != nil {
		errs = append(errs, fmt.Errorf("storage.safety_buffer_size: %w", err))
	}

	if _, err := ParseSize(s.MinFreeSpace); err != nil {
		errs = append(errs, fmt.Errorf("storage.min_free_space: %w", err))
	}

	return errs
}

func validateLimits(l *LimitsConfig) []error {
	var errs []error

	chunkBytes, err := ParseSize(l.MaxChunkSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("limits.max_chunk_size: %w", err))
	} else if chunkBytes <= 0 {
		errs = append(errs, errors.New("limits.max_chunk_size: must be positive"))
	}

	if l.MaxChunkCount < minChunkCount {
		errs = append(errs, fmt.Errorf("limits.max_chunk_count: must be >= %d, got %d",
			minChunkCount, l.MaxChunkCount))
	}

	fileBytes, err := ParseSize(l.MaxFileSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("limits.max_file_size: %w", err))
	} else if err == nil && chunkBytes > 0 && fileBytes > 0 && chunkBytes > fileBytes {
		errs = append(errs, fmt.Errorf(
			"limits.max_chunk_size (%s) must not exceed limits.max_file_size (%s)",
			l.MaxChunkSize, l.MaxFileSize))
	}

	if len(l.ExtensionAllow) > 0 && len(l.ExtensionBlock) > 0 {
		errs = append(errs, errors.New(
			"limits: extension_allow and extension_block are mutually exclusive"))
	}

	return errs
}

func validateCleanup(c *CleanupConfig) []error {
	var errs []error

	if c.DelayHours < minDelayHours {
		errs = append(errs, fmt.Errorf("cleanup.delay_hours: must be >= %d, got %d",
			minDelayHours, c.DelayHours))
	}

	errs = append(errs, validateDurationMin("cleanup.interval", c.Interval, 0)...)
	errs = append(errs, validateDurationMin("cleanup.stale_partial_age", c.StalePartialAge, 0)...)

	return errs
}

func validateClient(c *ClientConfig) []error {
	var errs []error

	if _, err := ParseSize(c.ChunkSize); err != nil {
		errs = append(errs, fmt.Errorf("client.chunk_size: %w", err))
	}

	if c.Concurrency < minClientConcurrency || c.Concurrency > maxClientConcurrency {
		errs = append(errs, fmt.Errorf("client.concurrency: must be between %d and %d, got %d",
			minClientConcurrency, maxClientConcurrency, c.Concurrency))
	}

	if c.MaxAttempts < minMaxAttempts || c.MaxAttempts > maxMaxAttempts {
		errs = append(errs, fmt.Errorf("client.max_attempts: must be between %d and %d, got %d",
			minMaxAttempts, maxMaxAttempts, c.MaxAttempts))
	}

	errs = append(errs, validateDurationMin("client.retry_base_delay", c.RetryBaseDelay, 0)...)
	errs = append(errs, validateDurationMin("client.retry_max_delay", c.RetryMaxDelay, 0)...)
	errs = append(errs, validateDurationMin("client.chunk_timeout", c.ChunkTimeout, 0)...)
	errs = append(errs, validateDurationMin("client.refresh_ttl", c.RefreshTTL, 0)...)

	if c.BandwidthLimit != "0" && c.BandwidthLimit != "" {
		limit := strings.TrimSuffix(strings.ToLower(c.BandwidthLimit), "/s")
		if _, err := ParseSize(limit); err != nil {
			errs = append(errs, fmt.Errorf("client.bandwidth_limit: %w", err))
		}
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("logging.level: must be one of debug, info, warn, error; got %q", l.Level))
	}

	if !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("logging.format: must be one of text, json; got %q", l.Format))
	}

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}
