// Package config defines the receptionist configuration.
//
//   - spec.go: ServerConfig and its koanf keys
//   - default.go: default values
//   - verify.go: validation, failing with InvalidConfiguration
//   - sanitize.go: structured log form of a configuration
//   - cluster.go: conversion to clusterserver.Config
//
// Configuration is loaded with internal/infra/confloader from a YAML file,
// GATEMESH_ environment variables and command-line flags.
package config
