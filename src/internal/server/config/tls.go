package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/shardctl/shardctl/internal/infra/tlsroots"
)

// ToTLSConfig builds a *tls.Config for the metastore and ingester RPC
// clients from cfg, or returns (nil, nil) when TLS is disabled.
//
// When CertFile/KeyFile are set, the client certificate is served through a
// tlsroots.Watcher so rotating the on-disk cert doesn't require a process
// restart.
func ToTLSConfig(cfg *TLSSection, logger *slog.Logger) (*tls.Config, error) {
	if cfg.CAFile == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := tlsroots.NewPool()
	if err != nil {
		return nil, fmt.Errorf("build root pool: %w", err)
	}
	if err := pool.AddCertFile(cfg.CAFile); err != nil {
		return nil, fmt.Errorf("load CA file %s: %w", cfg.CAFile, err)
	}

	tlsConfig := pool.TLSConfig()
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return tlsConfig, nil
	}

	watcher, err := tlsroots.NewWatcher(cfg.CertFile, cfg.KeyFile, tlsroots.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("watch client cert: %w", err)
	}
	watcher.StartAsync()
	tlsConfig.GetClientCertificate = watcher.GetClientCertificate
	return tlsConfig, nil
}
