package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chunkrelay/chunkrelay/internal/bandwidth"
	"github.com/chunkrelay/chunkrelay/internal/config"
	"github.com/chunkrelay/chunkrelay/internal/server/assembler"
	"github.com/chunkrelay/chunkrelay/internal/server/audit"
	"github.com/chunkrelay/chunkrelay/internal/server/coordinator"
	"github.com/chunkrelay/chunkrelay/internal/server/httpapi"
	"github.com/chunkrelay/chunkrelay/internal/server/notify"
	"github.com/chunkrelay/chunkrelay/internal/server/registry"
	"github.com/chunkrelay/chunkrelay/internal/server/store"
	"github.com/chunkrelay/chunkrelay/internal/server/validator"
	"github.com/chunkrelay/chunkrelay/internal/server/ws"
)

func newServeCmd() *cobra.Command {
	var auditPath string
	var watchConfig bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chunkrelay upload server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := buildLogger(cfg)

			return runServe(cmd.Context(), cfg, auditPath, watchConfig, logger)
		},
	}

	cmd.Flags().StringVar(&auditPath, "audit-db", "chunkrelay-audit.db", "path to the sqlite audit log (empty disables it)")
	cmd.Flags().BoolVar(&watchConfig, "watch-config", false, "hot-reload validator limits on config file changes")

	return cmd
}

// serverState holds everything a config reload can swap out. reload
// replaces the coordinator's validator limits in place; it never tears
// down the listener or in-flight uploads.
type serverState struct {
	coordinator *coordinator.Coordinator
}

func (s *serverState) applyConfig(cfg *config.Config) {
	limits, err := limitsFromConfig(cfg)
	if err != nil {
		return
	}

	s.coordinator.Limits = limits
}

func runServe(ctx context.Context, cfg *config.Config, auditPath string, watchConfig bool, logger *slog.Logger) error {
	ctx = shutdownContext(ctx, logger)

	reg := registry.New()

	st, err := storeFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	asm := assemblerFromConfig(cfg, logger)

	limits, err := limitsFromConfig(cfg)
	if err != nil {
		return err
	}

	limiter, err := bandwidth.New(cfg.Server.BandwidthLimit, logger)
	if err != nil {
		return fmt.Errorf("parsing server.bandwidth_limit: %w", err)
	}

	hub := ws.New(logger)

	var auditLog *audit.Log
	if auditPath != "" {
		auditLog, err = audit.Open(ctx, auditPath, logger)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer auditLog.Close()
	}

	var auditRecorder notify.AuditRecorder
	if auditLog != nil {
		auditRecorder = auditLog
	}

	fanout := notify.New(hub, auditRecorder, reg, logger)

	coord := coordinator.New(reg, st, asm, limits, fanout, logger)
	state := &serverState{coordinator: coord}

	if watchConfig && flagConfigPath != "" {
		watcher, err := config.Watch(flagConfigPath, logger, state.applyConfig)
		if err != nil {
			logger.Warn("serve: config watch disabled", slog.String("error", err.Error()))
		} else {
			defer watcher.Close()
		}
	}

	handler := httpapi.New(coord, logger)
	handler.Limiter = limiter
	if auditLog != nil {
		handler.History = auditLog
	}

	mux := handler.Routes()
	mux.Handle("GET /ws", hub)

	go runCleanupLoop(ctx, cfg, reg, st, logger)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("serve: listening", slog.String("addr", cfg.Server.ListenAddr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}
}

func storeFromConfig(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	minFree, err := config.ParseSize(cfg.Storage.MinFreeSpace)
	if err != nil {
		return nil, fmt.Errorf("parsing storage.min_free_space: %w", err)
	}

	safety, err := config.ParseSize(cfg.Storage.SafetyBufferSize)
	if err != nil {
		return nil, fmt.Errorf("parsing storage.safety_buffer_size: %w", err)
	}

	return store.New(cfg.Storage.BaseDir, cfg.Storage.TempDirPrefix, minFree, safety, logger), nil
}

func assemblerFromConfig(cfg *config.Config, logger *slog.Logger) *assembler.Assembler {
	return assembler.New(cfg.Storage.BaseDir, 0, 0, logger)
}

func limitsFromConfig(cfg *config.Config) (validator.Limits, error) {
	maxChunk, err := config.ParseSize(cfg.Limits.MaxChunkSize)
	if err != nil {
		return validator.Limits{}, fmt.Errorf("parsing limits.max_chunk_size: %w", err)
	}

	return validator.Limits{
		MaxChunkSize:   maxChunk,
		MaxChunkCount:  cfg.Limits.MaxChunkCount,
		ExtensionAllow: cfg.Limits.ExtensionAllow,
		ExtensionBlock: cfg.Limits.ExtensionBlock,
	}, nil
}

func runCleanupLoop(ctx context.Context, cfg *config.Config, reg *registry.Registry, st *store.Store, logger *slog.Logger) {
	if !cfg.Cleanup.Enabled {
		return
	}

	interval, err := time.ParseDuration(cfg.Cleanup.Interval)
	if err != nil {
		logger.Warn("serve: invalid cleanup.interval, cleanup disabled", slog.String("error", err.Error()))
		return
	}

	maxAge := time.Duration(cfg.Cleanup.DelayHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := reg.Cleanup(maxAge)
			for _, id := range removed {
				st.Cleanup(id)
			}

			if len(removed) > 0 {
				logger.Info("serve: cleaned up terminal sessions", slog.Int("count", len(removed)))
			}

			reportStalePartials(cfg.Storage.BaseDir, cfg.Cleanup.StalePartialAge, logger)
		}
	}
}

// reportStalePartials walks the chunk store base directory and logs
// session directories that have not been touched in longer than
// maxAgeStr, surfacing uploads the client appears to have abandoned.
func reportStalePartials(baseDir, maxAgeStr string, logger *slog.Logger) {
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			logger.Warn("serve: stale partial upload directory",
				slog.String("dir", e.Name()),
				slog.Duration("age", time.Since(info.ModTime())),
			)
		}
	}
}
