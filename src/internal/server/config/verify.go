// Package config defines the controller's configuration structure.
package config

import "errors"

// Verify validates the configuration.
func Verify(cfg *ControllerConfig) error {
	if err := verifyGossip(&cfg.Gossip); err != nil {
		return err
	}
	if err := verifyMetastore(&cfg.Metastore); err != nil {
		return err
	}
	return verifyTLS(&cfg.TLS)
}

func verifyGossip(cfg *GossipSection) error {
	if cfg.BindPort <= 0 || cfg.BindPort > 65535 {
		return errors.New("gossip.bind_port must be between 1 and 65535")
	}
	return nil
}

func verifyMetastore(cfg *MetastoreSection) error {
	if cfg.Endpoint == "" {
		return errors.New("metastore.endpoint is required")
	}
	if cfg.Timeout <= 0 {
		return errors.New("metastore.timeout must be positive")
	}
	return nil
}

func verifyTLS(cfg *TLSSection) error {
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}
	return nil
}
