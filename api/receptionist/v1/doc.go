// Package receptionistv1 defines the GateMesh receptionist RPC protocol.
//
// Messages are plain Go structs carried by Connect with a JSON codec, so
// the protocol needs no generated code. The service has five procedures:
//
//	GetContacts          client -> receptionist   discovery
//	Heartbeat            client -> receptionist   liveness probe
//	Resolve              client -> receptionist   registrations of a path
//	Deliver              client or peer -> receptionist
//	WatchClusterClients  subscriber <- receptionist (server stream)
package receptionistv1
