// Package main provides the entry point for gatemesh-receptionist.
//
// A receptionist is the cluster-side end of the client protocol. Each node:
//
//   - gossips with the other receptionists (memberlist) to share addresses
//     and registered service paths
//   - answers GetContacts and Heartbeat from clients outside the cluster
//   - routes client envelopes to local services or forwards them to the
//     owning peer
//   - serves /health, /ready and /metrics next to the RPC endpoint
//
// Usage:
//
//	gatemesh-receptionist --config /etc/gatemesh/receptionist.yaml
//	GATEMESH_RECEPTIONIST__SEEDS=10.0.0.1:7946 gatemesh-receptionist
//
// SIGHUP, or a change to the config file, reloads log.level. SIGINT and
// SIGTERM leave the cluster and stop the node.
package main
