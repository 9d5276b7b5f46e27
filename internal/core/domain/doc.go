// Package domain defines the core domain models for GateMesh.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Contact points: receptionist addresses and their liveness counters
//   - Session state: the client session lifecycle states
//   - Pending messages and envelopes: the unit of delivery
//   - Registrations and peers: the receptionist-side service directory
//   - Errors: structured domain error definitions
package domain
