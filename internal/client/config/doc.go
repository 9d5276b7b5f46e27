// Package config defines the configuration of a gatemesh client.
//
// The structure follows the koanf key layout:
//
//	client:
//	  initial-contacts: ["http://rcp-1:7400", "http://rcp-2:7400"]
//	  heartbeat-interval: 2s
//	  acceptable-heartbeat-pause: 13s
//	  buffer-size: 1000
//	log:
//	  level: info
//
// Every key can be overridden through GATEMESH_CLIENT__<KEY> environment
// variables (see confloader.EnvKey).
package config
