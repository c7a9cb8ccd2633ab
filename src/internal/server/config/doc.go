// Package config provides controller configuration for shardctl.
//
// This package defines the controller configuration structure and
// validation:
//
//   - spec.go: ControllerConfig struct definition
//   - default.go: Default configuration values
//   - tunables.go: conversion into controlplane.Tunables and pool.Config
//   - verify.go: validation (required fields, port ranges)
//   - sanitize.go: log sanitization
//   - tls.go: building a *tls.Config for the RPC clients from TLSSection
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and environment variables; no configuration values are read from flags.
package config
