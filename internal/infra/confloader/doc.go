// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults already present in the target struct
//  2. A YAML configuration file
//  3. Environment variables (GATEMESH_ prefix)
//  4. Command-line flags supplied by the caller
//
// Environment keys use "__" between sections and "_" inside an option
// name, so GATEMESH_CLIENT__HEARTBEAT_INTERVAL sets
// client.heartbeat-interval.
//
// Watcher reports changes to a configuration file so that a process can
// reload the settings that are safe to change at runtime.
package confloader
