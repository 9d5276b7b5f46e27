// Package clusterserver runs a receptionist node.
//
// A node combines three parts:
//
//   - Discovery, a memberlist gossip member that shares each node's RPC
//     address and advertised service paths with its peers
//   - the receptionist Registry, which tracks cluster clients and routes
//     envelopes to local services or to the peer that owns them
//   - a Connect RPC endpoint served next to /health, /ready and /metrics
//
// Server wires them together. Peer receptionists relay envelopes to each
// other over the same RPC endpoint external clients use.
package clusterserver
